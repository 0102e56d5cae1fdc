// Package config loads marvin configuration with layered precedence:
// built-in defaults, then an optional YAML config file, then MARVIN_*
// environment variables, then runtime overrides passed to Load.
package config

import "time"

// Config is the resolved configuration for the CLI and server.
type Config struct {
	Gateway GatewayConfig `mapstructure:"gateway"`
	Poll    PollConfig    `mapstructure:"poll"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// GatewayConfig describes the upstream job orchestrator endpoint.
type GatewayConfig struct {
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
}

// PollConfig controls the background reconciliation loop.
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// MonitorConfig controls per-job monitoring limits.
type MonitorConfig struct {
	WatchDeadline        time.Duration `mapstructure:"watch_deadline"`
	MaxStatusChecks      int           `mapstructure:"max_status_checks"`
	MaxTransportFailures int           `mapstructure:"max_transport_failures"`
}

// ServerConfig controls the local dashboard API listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}
