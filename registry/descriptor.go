package registry

import (
	"context"
	"time"

	"github.com/analyticore/gatekit/validation"
)

// Health represents the probed health of a registered service.
type Health int

const (
	// HealthUnknown is the state before the first probe completes.
	HealthUnknown Health = iota
	// HealthHealthy services receive traffic under normal load.
	HealthHealthy
	// HealthDegraded services form the secondary dispatch tier.
	HealthDegraded
	// HealthUnhealthy services never receive traffic.
	HealthUnhealthy
)

// String returns the health tier name.
func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthDegraded:
		return "degraded"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// ServiceType tags the kind of backend a descriptor represents.
type ServiceType string

const (
	// TypeAnalyticsEngine runs graph-analytics operations.
	TypeAnalyticsEngine ServiceType = "analytics-engine"
	// TypeAggregator combines results from other engines.
	TypeAggregator ServiceType = "aggregator"
)

// Descriptor identifies a backend service and what it can serve. Identity
// fields are immutable after registration; only Health and LastSeen move.
type Descriptor struct {
	ID           string      `json:"service_id" validate:"required"`
	Name         string      `json:"service_name" validate:"required"`
	Type         ServiceType `json:"service_type" validate:"required,oneof=analytics-engine aggregator"`
	Endpoint     string      `json:"endpoint" validate:"required"`
	Capabilities []string    `json:"capabilities" validate:"required,min=1,dive,required"`
	Version      string      `json:"version"`
	RegisteredAt time.Time   `json:"registered_at"`

	Health   Health    `json:"health_status"`
	LastSeen time.Time `json:"last_seen"`
}

// HasCapability reports whether the descriptor can serve capability.
func (d Descriptor) HasCapability(capability string) bool {
	for _, c := range d.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Engine is the outbound contract every registered backend satisfies. The
// analytics algorithms behind Invoke are opaque to gatekit.
type Engine interface {
	// Invoke runs one operation on the backend. The context carries the
	// per-call deadline.
	Invoke(ctx context.Context, operation string, params map[string]any) (any, error)

	// HealthCheck probes the backend's health endpoint.
	HealthCheck(ctx context.Context) (Health, error)
}

// validateDescriptor runs struct-tag validation on a descriptor.
func validateDescriptor(d Descriptor) error {
	return validation.ValidateStruct(d)
}
