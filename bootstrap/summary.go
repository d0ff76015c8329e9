package bootstrap

import (
	"context"
	"time"

	"github.com/analyticore/gatekit/logger"
)

// Summary captures what came up during startup and logs it once the
// process is ready, so a single log line answers "what is this process
// running and where".
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
}

// NewSummary creates a summary tracker for one process.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records how long startup took.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// Display logs the ready-state summary: identity, component health and
// the serving surface.
func (s *Summary) Display(ctx context.Context, app *App) {
	components := map[string]interface{}{}
	for _, h := range app.Components.HealthAll(ctx) {
		components[h.Name] = string(h.Status)
	}

	fields := logger.Fields(
		"service", s.serviceName,
		"version", s.version,
		"environment", app.Cfg.Environment,
		"startup", s.startupDuration.String(),
		"components", components,
		"workers", app.Cfg.Gateway.Workers,
		"queue_capacity", app.Cfg.Gateway.QueueCapacity,
	)
	if app.Server != nil {
		fields["listen"] = app.Server.Addr()
	}
	if app.shared != nil {
		fields["shared_cache"] = app.Cfg.Redis.Addr
	}

	app.Logger.Info("ready", fields)
}
