package gateway

import (
	"time"

	apperrors "github.com/analyticore/gatekit/errors"
	"github.com/analyticore/gatekit/registry"
	"github.com/analyticore/gatekit/validation"
)

// Priority orders queued requests. Higher values are dequeued first;
// requests of equal priority are served in arrival order.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the lowercase name of the priority tier.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParsePriority maps a tier name to its Priority. Unrecognized names
// fall back to PriorityNormal.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	default:
		return PriorityNormal
	}
}

// Request describes one unit of work for the gateway. Operation names
// the engine capability to invoke. CacheKey, when set, enables the
// response cache for this request.
type Request struct {
	// ID identifies the request in logs and responses. Assigned
	// automatically when empty.
	ID string

	// Operation is the capability to invoke on the selected engine.
	Operation string

	// Params are passed through to the engine unmodified.
	Params map[string]any

	// ServiceType restricts candidate selection to one engine type.
	// Empty means any type that advertises the capability.
	ServiceType registry.ServiceType

	Priority Priority

	// CacheKey enables response caching. Requests with the same key
	// share cached results for CacheTTL.
	CacheKey string

	// CacheTTL overrides the configured response cache TTL. Zero means
	// use the default.
	CacheTTL time.Duration

	// Deadline is the latest time a result is useful. A request whose
	// deadline has passed when it reaches a worker is failed without
	// touching any backend. Zero means no deadline beyond the
	// configured default timeout.
	Deadline time.Time
}

// Validate rejects requests the gateway cannot route. Malformed requests
// fail before they consume a queue slot.
func (r Request) Validate() error {
	return validation.New().
		Required("operation", r.Operation).
		Range("priority", int(r.Priority), int(PriorityLow), int(PriorityCritical)).
		Custom(r.CacheTTL >= 0, "cache_ttl", "must not be negative").
		Err()
}

// Response carries the outcome of a dispatched request. Exactly one of
// Result and Err is meaningful.
type Response struct {
	RequestID string

	Result any

	// Err is the structured failure, nil on success. Sentinel errors
	// (ErrOverloaded, ErrNoAvailableService, ErrDeadlineExceeded,
	// ErrShuttingDown) are matchable with errors.Is.
	Err error

	// Record classifies Err. Nil on success.
	Record *apperrors.Record

	// ServedBy is the ID of the engine that produced the result, or
	// "cache" / "fallback" when no engine was invoked.
	ServedBy string

	FromCache bool

	// Attempts counts backend invocations made for this request.
	Attempts int

	Latency time.Duration
}
