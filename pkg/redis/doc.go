// Package redis provides a retrying connect helper around go-redis plus a
// healthcheck probe. The idempotency package uses it for the shared
// payment-reference deduper.
package redis
