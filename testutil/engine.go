package testutil

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/analyticore/gatekit/errors"
	"github.com/analyticore/gatekit/registry"
)

// ScriptedEngine is a fake backend for registry and gateway tests. Each
// operation returns a scripted value; failures can be injected per
// operation and the reported health toggled at any time. All methods are
// safe for concurrent use.
type ScriptedEngine struct {
	mu          sync.Mutex
	results     map[string]any
	failures    map[string]*failureScript
	health      registry.Health
	healthErr   error
	invocations map[string]int
}

type failureScript struct {
	err       error
	remaining int // negative means fail forever
}

// NewScriptedEngine creates a healthy engine with no scripted operations.
// Unscripted operations fail with an unsupported-operation error.
func NewScriptedEngine() *ScriptedEngine {
	return &ScriptedEngine{
		results:     make(map[string]any),
		failures:    make(map[string]*failureScript),
		health:      registry.HealthHealthy,
		invocations: make(map[string]int),
	}
}

// Script sets the value returned for operation.
func (e *ScriptedEngine) Script(operation string, result any) *ScriptedEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[operation] = result
	return e
}

// FailNext makes the next n invocations of operation return err. The
// scripted result is served once the failures are consumed.
func (e *ScriptedEngine) FailNext(operation string, n int, err error) *ScriptedEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[operation] = &failureScript{err: err, remaining: n}
	return e
}

// FailAlways makes every invocation of operation return err.
func (e *ScriptedEngine) FailAlways(operation string, err error) *ScriptedEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[operation] = &failureScript{err: err, remaining: -1}
	return e
}

// SetHealth changes the health reported to probes.
func (e *ScriptedEngine) SetHealth(h registry.Health) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health = h
}

// SetHealthError makes probes fail outright, as an unreachable backend
// would.
func (e *ScriptedEngine) SetHealthError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.healthErr = err
}

// Invocations returns how many times operation has been invoked.
func (e *ScriptedEngine) Invocations(operation string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.invocations[operation]
}

// Invoke implements registry.Engine.
func (e *ScriptedEngine) Invoke(ctx context.Context, operation string, params map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.invocations[operation]++

	if fs, ok := e.failures[operation]; ok && fs.remaining != 0 {
		if fs.remaining > 0 {
			fs.remaining--
		}
		return nil, fs.err
	}
	if result, ok := e.results[operation]; ok {
		return result, nil
	}
	return nil, &apperrors.UnsupportedError{Operation: operation}
}

// HealthCheck implements registry.Engine.
func (e *ScriptedEngine) HealthCheck(ctx context.Context) (registry.Health, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.healthErr != nil {
		return registry.HealthUnknown, e.healthErr
	}
	return e.health, nil
}

// Descriptor builds a registrable descriptor for this engine.
func Descriptor(id string, capabilities ...string) registry.Descriptor {
	return registry.Descriptor{
		ID:           id,
		Name:         fmt.Sprintf("test-%s", id),
		Type:         registry.TypeAnalyticsEngine,
		Endpoint:     "scripted://" + id,
		Capabilities: capabilities,
	}
}
