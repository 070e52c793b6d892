// Package config loads environment-driven configuration structs via
// github.com/caarlos0/env, with .env support for local development. Each
// config type is parsed once per process and cached.
//
//	type MonitorConfig struct {
//	    ScanInterval time.Duration `env:"MONITOR_SCAN_INTERVAL" envDefault:"5m"`
//	}
//
//	var cfg MonitorConfig
//	config.MustLoad(&cfg)
package config
