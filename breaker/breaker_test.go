package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend failure")

func trippedBreaker(t *testing.T, resetTimeout time.Duration) *CircuitBreaker {
	t.Helper()
	cb := New(Config{
		Name:             "test",
		FailureThreshold: 3,
		Window:           10 * time.Second,
		ResetTimeout:     resetTimeout,
	})
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errBackend })
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", cb.State())
	}
	return cb
}

func TestBreaker_StartsClosed(t *testing.T) {
	cb := New(Config{Name: "test"})
	if cb.State() != StateClosed {
		t.Errorf("expected closed, got %s", cb.State())
	}
}

func TestBreaker_OpensAtFailureThreshold(t *testing.T) {
	cb := trippedBreaker(t, 5*time.Second)

	// While open, the dependency must never be invoked.
	err := cb.Execute(func() error {
		t.Error("dependency called while circuit open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_OpensAtFailureRate(t *testing.T) {
	cb := New(Config{
		Name:                 "test",
		FailureThreshold:     100, // count check out of the way
		FailureRateThreshold: 0.5,
		MinSamples:           4,
		Window:               10 * time.Second,
		ResetTimeout:         time.Second,
	})

	outcomes := []error{nil, errBackend, nil, errBackend}
	for _, out := range outcomes {
		out := out
		_ = cb.Execute(func() error { return out })
	}

	if cb.State() != StateOpen {
		t.Errorf("expected open at 50%% failure rate over 4 samples, got %s", cb.State())
	}
}

func TestBreaker_RateNeedsMinSamples(t *testing.T) {
	cb := New(Config{
		Name:                 "test",
		FailureThreshold:     100,
		FailureRateThreshold: 0.5,
		MinSamples:           10,
		Window:               10 * time.Second,
	})

	_ = cb.Execute(func() error { return errBackend })
	_ = cb.Execute(func() error { return errBackend })

	if cb.State() != StateClosed {
		t.Errorf("rate check fired below minimum sample size: %s", cb.State())
	}
}

func TestBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := trippedBreaker(t, 30*time.Millisecond)

	time.Sleep(40 * time.Millisecond)

	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open after reset timeout, got %s", cb.State())
	}

	var called bool
	if err := cb.Execute(func() error { called = true; return nil }); err != nil {
		t.Errorf("probe should be admitted, got %v", err)
	}
	if !called {
		t.Error("probe did not reach the dependency")
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestBreaker_HalfOpenProbeBudget(t *testing.T) {
	cb := New(Config{
		Name:              "test",
		FailureThreshold:  1,
		Window:            10 * time.Second,
		ResetTimeout:      10 * time.Millisecond,
		HalfOpenMaxProbes: 2,
		HalfOpenSuccesses: 2,
	})
	_ = cb.Execute(func() error { return errBackend })
	time.Sleep(15 * time.Millisecond)

	// Hold both probe slots open concurrently.
	release := make(chan struct{})
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			done <- cb.Execute(func() error {
				<-release
				return nil
			})
		}()
	}
	// Give the probes time to occupy their slots.
	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(func() error {
		t.Error("third call admitted past probe budget")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen past probe budget, got %v", err)
	}

	close(release)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Errorf("probe %d failed: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after 2 probe successes, got %s", cb.State())
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	cb := trippedBreaker(t, 10*time.Millisecond)
	time.Sleep(15 * time.Millisecond)

	before := cb.Snapshot().OpenedAt
	_ = cb.Execute(func() error { return errBackend })

	if cb.State() != StateOpen {
		t.Fatalf("expected reopened after probe failure, got %s", cb.State())
	}
	if !cb.Snapshot().OpenedAt.After(before) {
		t.Error("probe failure should refresh opened_at")
	}
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	cb := New(Config{Name: "test", FailureThreshold: 1, Window: time.Minute})

	_ = cb.Execute(func() error { return context.Canceled })

	if cb.State() != StateClosed {
		t.Errorf("caller cancellation tripped the breaker: %s", cb.State())
	}
	if snap := cb.Snapshot(); snap.WindowFailures != 0 || snap.WindowRequests != 0 {
		t.Errorf("cancellation moved counters: %+v", snap)
	}
}

func TestBreaker_WindowExpiryResetsCounts(t *testing.T) {
	cb := New(Config{
		Name:             "test",
		FailureThreshold: 3,
		Window:           20 * time.Millisecond,
		ResetTimeout:     time.Second,
	})

	_ = cb.Execute(func() error { return errBackend })
	_ = cb.Execute(func() error { return errBackend })
	time.Sleep(30 * time.Millisecond)
	_ = cb.Execute(func() error { return errBackend })

	if cb.State() != StateClosed {
		t.Errorf("failures from an expired window counted toward the threshold: %s", cb.State())
	}
}

func TestBreaker_TransitionsAreObservable(t *testing.T) {
	type transition struct {
		from, to State
		reason   string
	}
	var seen []transition
	cb := New(Config{
		Name:             "test",
		FailureThreshold: 1,
		Window:           time.Minute,
		ResetTimeout:     10 * time.Millisecond,
		OnStateChange: func(_ string, from, to State, reason string) {
			seen = append(seen, transition{from, to, reason})
		},
	})

	_ = cb.Execute(func() error { return errBackend })
	time.Sleep(15 * time.Millisecond)
	_ = cb.Execute(func() error { return nil })

	want := []transition{
		{StateClosed, StateOpen, "failure count threshold exceeded"},
		{StateOpen, StateHalfOpen, "reset timeout elapsed"},
		{StateHalfOpen, StateClosed, "probe successes reached threshold"},
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %d transitions, got %d: %+v", len(want), len(seen), seen)
	}
	for i, tr := range want {
		if seen[i] != tr {
			t.Errorf("transition %d: expected %+v, got %+v", i, tr, seen[i])
		}
	}
}

func TestDo_ReturnsValueThroughBreaker(t *testing.T) {
	cb := New(Config{Name: "test"})

	got, err := Do(cb, func() (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Errorf("expected 42, got %d err=%v", got, err)
	}
}
