// Package logger builds slog loggers with the module's conventions: JSON in
// production, text in development, level from the environment. The attr
// helpers keep key names consistent across components so log aggregation
// queries stay simple.
package logger
