package breaker

import (
	"strings"
	"sync"
)

// Manager owns one circuit breaker per dependency key. Breakers are
// created lazily on first use and live until Remove is called (when a
// service is deregistered) or the process exits.
type Manager struct {
	defaults Config

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewManager creates a Manager whose breakers inherit the given defaults.
func NewManager(defaults Config) *Manager {
	defaults.ApplyDefaults()
	return &Manager{
		defaults: defaults,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for key, creating it on first use.
func (m *Manager) Get(key string) *CircuitBreaker {
	m.mu.RLock()
	cb, ok := m.breakers[key]
	m.mu.RUnlock()
	if ok {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[key]; ok {
		return cb
	}
	cfg := m.defaults
	cfg.Name = key
	cb = New(cfg)
	m.breakers[key] = cb
	return cb
}

// Lookup returns the breaker for key without creating one.
func (m *Manager) Lookup(key string) (*CircuitBreaker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cb, ok := m.breakers[key]
	return cb, ok
}

// Remove evicts the breaker for key. Used when a dependency is
// deregistered; idempotent.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakers, key)
}

// RemovePrefix evicts every breaker whose key starts with prefix. A
// deregistered service takes all of its capability-route breakers with it.
func (m *Manager) RemovePrefix(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.breakers {
		if strings.HasPrefix(key, prefix) {
			delete(m.breakers, key)
		}
	}
}

// OpenCount returns the number of breakers currently open. Upstream
// backpressure decisions key off this aggregate.
func (m *Manager) OpenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, cb := range m.breakers {
		if cb.State() == StateOpen {
			count++
		}
	}
	return count
}

// Snapshots returns read-only views of every breaker, keyed by dependency.
func (m *Manager) Snapshots() map[string]Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Snapshot, len(m.breakers))
	for key, cb := range m.breakers {
		out[key] = cb.Snapshot()
	}
	return out
}
