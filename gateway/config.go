package gateway

import (
	"fmt"
	"time"
)

// Config controls the gateway's worker pool, queue, and dispatch
// behavior.
type Config struct {
	// Workers is the number of dispatch workers.
	Workers int `mapstructure:"workers"`

	// QueueCapacity bounds the number of requests waiting for a
	// worker. Set SyncHandoff to run with no buffering at all.
	QueueCapacity int `mapstructure:"queue_capacity"`

	// SyncHandoff forces a zero-capacity queue: a request is accepted
	// only when a worker is idle and takes it immediately.
	SyncHandoff bool `mapstructure:"sync_handoff"`

	// MaxAttempts bounds backend invocations per request, counting the
	// first try. Failover to another candidate consumes an attempt.
	MaxAttempts int `mapstructure:"max_attempts"`

	// DefaultTimeout applies to requests that carry no deadline.
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`

	// BatchConcurrency caps how many requests of one batch run at the
	// same time.
	BatchConcurrency int `mapstructure:"batch_concurrency"`

	// ResponseCacheTTL is the default lifetime of cached responses.
	ResponseCacheTTL time.Duration `mapstructure:"response_cache_ttl"`

	// ShutdownGrace is how long Stop waits for in-flight work before
	// abandoning it.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`

	// FallbackDefaults maps an operation name to the value served when
	// the error handler's policy is to fall back to a default.
	FallbackDefaults map[string]any `mapstructure:"-"`
}

// ApplyDefaults fills zero fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.QueueCapacity == 0 && !c.SyncHandoff {
		c.QueueCapacity = 64
	}
	if c.SyncHandoff {
		c.QueueCapacity = 0
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 10 * time.Second
	}
	if c.BatchConcurrency == 0 {
		c.BatchConcurrency = 4
	}
	if c.ResponseCacheTTL == 0 {
		c.ResponseCacheTTL = 30 * time.Second
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = 5 * time.Second
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("gateway: workers must be at least 1, got %d", c.Workers)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("gateway: queue capacity must not be negative, got %d", c.QueueCapacity)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("gateway: max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("gateway: batch concurrency must be at least 1, got %d", c.BatchConcurrency)
	}
	return nil
}
