// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/okian/oom/internal/domain/reconcile"
	"github.com/okian/oom/pkg/logger"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseURL selects the Postgres store. Empty keeps everything in memory.
	DatabaseURL string `koanf:"database_url"`

	// PublishWorkers sets the number of publish shards.
	PublishWorkers int `koanf:"publish_workers"`

	// PublishQueueSize bounds each shard's queue.
	PublishQueueSize int `koanf:"publish_queue_size"`

	// IdempotencySize caps the remembered publish idempotency keys.
	IdempotencySize int `koanf:"idempotency_size"`

	// ReconcileMode is one of per_event, per_query, log_only, fallback_only.
	ReconcileMode string `koanf:"reconcile_mode"`

	// MaxMembers caps a society's roster. Zero means unlimited.
	MaxMembers int `koanf:"max_members"`

	// SentryDSN enables error reporting when set.
	SentryDSN string `koanf:"sentry_dsn"`

	// Environment tags reported errors, e.g. "production".
	Environment string `koanf:"environment"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        logger.FormatText,
		Addr:             ":9080",
		PublishWorkers:   runtime.NumCPU(),
		PublishQueueSize: 1024,
		IdempotencySize:  50_000,
		ReconcileMode:    string(reconcile.ModePerEvent),
		Environment:      "development",
	}
}

// Validate reports the first setting the service cannot run with.
func (c *Config) Validate(_ context.Context) error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.PublishWorkers < 1:
		return fmt.Errorf("%w: publish_workers must be positive, got %d", ErrInvalidConfig, c.PublishWorkers)
	case c.PublishQueueSize < 1:
		return fmt.Errorf("%w: publish_queue_size must be positive, got %d", ErrInvalidConfig, c.PublishQueueSize)
	case c.IdempotencySize < 0:
		return fmt.Errorf("%w: idempotency_size must not be negative", ErrInvalidConfig)
	case c.MaxMembers < 0:
		return fmt.Errorf("%w: max_members must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case logger.FormatText, logger.FormatJSON:
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if _, err := reconcile.ParseMode(c.ReconcileMode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
