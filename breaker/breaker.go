package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows calls to pass through.
	StateClosed State = iota
	// StateOpen blocks all calls.
	StateOpen
	// StateHalfOpen allows limited probe calls to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit is open or the half-open
// probe budget is exhausted. The dependency is never invoked in that case.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config configures a circuit breaker for one dependency.
type Config struct {
	// Name identifies this breaker for metrics/logging.
	Name string `yaml:"-" mapstructure:"-"`
	// FailureThreshold opens the circuit once this many failures occur
	// within Window.
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	// FailureRateThreshold opens the circuit once the failure ratio within
	// Window reaches this value and at least MinSamples calls were seen.
	// Zero disables the rate check.
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	// MinSamples is the minimum call count before the rate check applies.
	MinSamples int `yaml:"min_samples" mapstructure:"min_samples"`
	// Window is the rolling window over which failures are counted.
	Window time.Duration `yaml:"window" mapstructure:"window"`
	// ResetTimeout is how long the circuit stays open before probing.
	ResetTimeout time.Duration `yaml:"reset_timeout" mapstructure:"reset_timeout"`
	// HalfOpenMaxProbes is the number of calls admitted while half-open.
	HalfOpenMaxProbes int `yaml:"half_open_max_probes" mapstructure:"half_open_max_probes"`
	// HalfOpenSuccesses is the number of probe successes required to close.
	HalfOpenSuccesses int `yaml:"half_open_successes" mapstructure:"half_open_successes"`
	// IsFailure decides whether an error counts as a dependency failure.
	// Defaults to treating caller cancellation as not-a-failure.
	IsFailure func(error) bool `yaml:"-" mapstructure:"-"`
	// OnStateChange is called on every transition with the reason.
	OnStateChange func(name string, from, to State, reason string) `yaml:"-" mapstructure:"-"`
}

// ApplyDefaults fills zero fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 10
	}
	if c.Window <= 0 {
		c.Window = 30 * time.Second
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxProbes <= 0 {
		c.HalfOpenMaxProbes = 1
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = c.HalfOpenMaxProbes
	}
	if c.IsFailure == nil {
		c.IsFailure = DefaultIsFailure
	}
}

// DefaultIsFailure counts every error except caller cancellation.
// A cancelled caller says nothing about the dependency's health.
func DefaultIsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Snapshot is a read-only view of a breaker for observability.
type Snapshot struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	WindowRequests      int       `json:"window_requests"`
	WindowFailures      int       `json:"window_failures"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	HalfOpenSuccesses   int       `json:"half_open_successes"`
	OpenedAt            time.Time `json:"opened_at,omitempty"`
	NextProbeAt         time.Time `json:"next_probe_at,omitempty"`
	LastTransition      time.Time `json:"last_transition,omitempty"`
	LastReason          string    `json:"last_reason,omitempty"`
}

// CircuitBreaker is the per-dependency failure-isolation state machine.
// It is safe for concurrent use; contention is scoped to this one breaker.
type CircuitBreaker struct {
	config Config

	mu               sync.Mutex
	state            State
	windowStart      time.Time
	windowRequests   int
	windowFailures   int
	consecFailures   int
	halfOpenCalls    int
	halfOpenSucceeds int
	openedAt         time.Time
	nextProbeAt      time.Time
	lastTransition   time.Time
	lastReason       string
}

// New creates a circuit breaker with the given configuration.
func New(config Config) *CircuitBreaker {
	config.ApplyDefaults()
	return &CircuitBreaker{
		config:      config,
		state:       StateClosed,
		windowStart: time.Now(),
	}
}

// Execute runs fn through the breaker. It returns ErrCircuitOpen without
// invoking fn when the circuit is open or the probe budget is exhausted;
// otherwise it invokes fn, records the outcome, and returns fn's error.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allowRequest() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.recordResult(err)
	return err
}

// Do runs a function that returns a value through the breaker.
func Do[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var result T
	err := cb.Execute(func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}

// State returns the current state, applying the open-to-half-open timeout.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState(time.Now())
}

// Snapshot returns a read-only view of the breaker.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	state := cb.currentState(time.Now())
	return Snapshot{
		Name:                cb.config.Name,
		State:               state.String(),
		WindowRequests:      cb.windowRequests,
		WindowFailures:      cb.windowFailures,
		ConsecutiveFailures: cb.consecFailures,
		HalfOpenSuccesses:   cb.halfOpenSucceeds,
		OpenedAt:            cb.openedAt,
		NextProbeAt:         cb.nextProbeAt,
		LastTransition:      cb.lastTransition,
		LastReason:          cb.lastReason,
	}
}

// Reset forces the breaker back to closed with cleared counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toState(StateClosed, "manual reset", time.Now())
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	switch cb.currentState(now) {
	case StateClosed:
		return true
	case StateOpen:
		return false
	case StateHalfOpen:
		if cb.halfOpenCalls < cb.config.HalfOpenMaxProbes {
			cb.halfOpenCalls++
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.rollWindow(now)

	if err != nil && !cb.config.IsFailure(err) {
		// Not a dependency failure: no counter movement either way, and a
		// cancelled probe gives its half-open slot back.
		if cb.state == StateHalfOpen && cb.halfOpenCalls > 0 {
			cb.halfOpenCalls--
		}
		return
	}

	cb.windowRequests++
	if err != nil {
		cb.onFailure(now)
	} else {
		cb.onSuccess(now)
	}
}

func (cb *CircuitBreaker) onSuccess(now time.Time) {
	switch cb.currentState(now) {
	case StateClosed:
		cb.consecFailures = 0
	case StateHalfOpen:
		cb.halfOpenSucceeds++
		if cb.halfOpenSucceeds >= cb.config.HalfOpenSuccesses {
			cb.toState(StateClosed, "probe successes reached threshold", now)
		}
	}
}

func (cb *CircuitBreaker) onFailure(now time.Time) {
	cb.windowFailures++
	cb.consecFailures++

	switch cb.currentState(now) {
	case StateClosed:
		if cb.windowFailures >= cb.config.FailureThreshold {
			cb.open("failure count threshold exceeded", now)
			return
		}
		if cb.config.FailureRateThreshold > 0 && cb.windowRequests >= cb.config.MinSamples {
			rate := float64(cb.windowFailures) / float64(cb.windowRequests)
			if rate >= cb.config.FailureRateThreshold {
				cb.open("failure rate threshold exceeded", now)
			}
		}
	case StateHalfOpen:
		cb.open("probe failed", now)
	}
}

func (cb *CircuitBreaker) open(reason string, now time.Time) {
	cb.openedAt = now
	cb.nextProbeAt = now.Add(cb.config.ResetTimeout)
	cb.toState(StateOpen, reason, now)
}

// rollWindow resets window counters once the rolling window has elapsed.
func (cb *CircuitBreaker) rollWindow(now time.Time) {
	if now.Sub(cb.windowStart) >= cb.config.Window {
		cb.windowStart = now
		cb.windowRequests = 0
		cb.windowFailures = 0
	}
}

// currentState applies the open-to-half-open timeout transition.
// Callers must hold cb.mu.
func (cb *CircuitBreaker) currentState(now time.Time) State {
	if cb.state == StateOpen && !now.Before(cb.nextProbeAt) {
		cb.toState(StateHalfOpen, "reset timeout elapsed", now)
	}
	return cb.state
}

func (cb *CircuitBreaker) toState(to State, reason string, now time.Time) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.lastTransition = now
	cb.lastReason = reason

	switch to {
	case StateClosed:
		cb.windowStart = now
		cb.windowRequests = 0
		cb.windowFailures = 0
		cb.consecFailures = 0
		cb.halfOpenCalls = 0
		cb.halfOpenSucceeds = 0
	case StateHalfOpen:
		cb.halfOpenCalls = 0
		cb.halfOpenSucceeds = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to, reason)
	}
}
