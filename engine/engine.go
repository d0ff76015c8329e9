package engine

import (
	"context"

	"github.com/analyticore/gatekit/registry"
)

// Func adapts plain functions to the registry.Engine interface. The zero
// value reports healthy and fails every invocation.
type Func struct {
	// InvokeFunc handles one operation call.
	InvokeFunc func(ctx context.Context, operation string, params map[string]any) (any, error)
	// HealthFunc reports backend health. Nil means always healthy.
	HealthFunc func(ctx context.Context) (registry.Health, error)
}

// Invoke implements registry.Engine.
func (f Func) Invoke(ctx context.Context, operation string, params map[string]any) (any, error) {
	if f.InvokeFunc == nil {
		return nil, &errNotImplemented{operation}
	}
	return f.InvokeFunc(ctx, operation, params)
}

// HealthCheck implements registry.Engine.
func (f Func) HealthCheck(ctx context.Context) (registry.Health, error) {
	if f.HealthFunc == nil {
		return registry.HealthHealthy, nil
	}
	return f.HealthFunc(ctx)
}

type errNotImplemented struct {
	operation string
}

func (e *errNotImplemented) Error() string {
	return "engine.Func has no InvokeFunc for operation " + e.operation
}

// Compile-time check.
var _ registry.Engine = Func{}
