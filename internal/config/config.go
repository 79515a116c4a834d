// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the process-level configuration of the connection core. Every
// field maps to a ZEQUEL_* environment variable.
type Config struct {
	// ListenAddr is the HTTP/IPC listen address.
	ListenAddr string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:7411"`

	// StorePath is the embedded SQLite file holding saved connections and
	// query history.
	StorePath string `envconfig:"STORE_PATH" default:"zequel.db"`

	// EncryptionKey is the 64-char hex AES-256 key sealing stored secrets.
	EncryptionKey string `envconfig:"ENCRYPTION_KEY"`

	// HealthInterval is the connection health check period.
	HealthInterval time.Duration `envconfig:"HEALTH_INTERVAL" default:"30s"`

	// RequestsPerMinute bounds each client IP on the HTTP surface.
	RequestsPerMinute float64 `envconfig:"REQUESTS_PER_MINUTE" default:"300"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads a .env file when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("zequel", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("ZEQUEL_ENCRYPTION_KEY is required")
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SlogLevel returns the configured slog level. Load has already validated it.
func (c *Config) SlogLevel() slog.Level {
	level, _ := ParseLogLevel(c.LogLevel)
	return level
}

// ParseLogLevel maps a level name to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", s)
	}
}
