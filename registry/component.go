package registry

import (
	"context"
	"fmt"

	"github.com/analyticore/gatekit/component"
)

// Monitor adapts the registry's health monitor to the component lifecycle.
type Monitor struct {
	registry *Registry
}

// NewMonitor wraps a registry for lifecycle management.
func NewMonitor(r *Registry) *Monitor {
	return &Monitor{registry: r}
}

// Name implements component.Component.
func (m *Monitor) Name() string { return "registry-monitor" }

// Start launches the periodic health probing.
func (m *Monitor) Start(ctx context.Context) error {
	// The monitor must outlive the startup call; it stops via Stop, not
	// via the startup context.
	m.registry.StartMonitor(context.WithoutCancel(ctx))
	return nil
}

// Stop halts probing and waits for the monitor goroutine.
func (m *Monitor) Stop(context.Context) error {
	m.registry.StopMonitor()
	return nil
}

// Health reports degraded when any registered service is unhealthy.
func (m *Monitor) Health(context.Context) component.Health {
	metrics := m.registry.Metrics()
	h := component.Health{Name: m.Name(), Status: component.StatusHealthy}
	if n := metrics.ByTier[HealthUnhealthy.String()]; n > 0 {
		h.Status = component.StatusDegraded
		h.Message = fmt.Sprintf("%d unhealthy services", n)
	}
	return h
}
