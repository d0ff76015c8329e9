package bootstrap

import (
	"time"

	apperrors "github.com/analyticore/gatekit/errors"
	"github.com/analyticore/gatekit/logger"
)

// Option adjusts how New assembles the App.
type Option func(*appOptions)

type appOptions struct {
	logger           *logger.Logger
	handler          *apperrors.Handler
	fallbackDefaults map[string]any
	gracefulTimeout  *time.Duration
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger instead of building one from the
// logging section.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithErrorHandler replaces the default failure policies. Use this to
// retune which categories retry, fall back or fail.
func WithErrorHandler(h *apperrors.Handler) Option {
	return func(o *appOptions) { o.handler = h }
}

// WithFallbackDefaults sets the per-operation values served when a
// failure policy falls back to a default. These carry arbitrary values,
// so they are wired in code rather than through the config file.
func WithFallbackDefaults(defaults map[string]any) Option {
	return func(o *appOptions) { o.fallbackDefaults = defaults }
}

// WithGracefulTimeout bounds the shutdown sequence.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) { o.gracefulTimeout = &d }
}
