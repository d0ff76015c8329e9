package errors

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Strategy selects a delay before retrying a failed attempt.
// The boolean result is false when the failure should not be retried.
type Strategy interface {
	Delay(attempt int, cat Category) (time.Duration, bool)
}

// retryable reports whether a category is worth retrying at all.
// Permanent, auth, and validation failures cannot succeed on retry.
func retryable(cat Category) bool {
	switch cat {
	case CategoryPermanent, CategoryAuth, CategoryValidation:
		return false
	default:
		return true
	}
}

// ExponentialBackoff doubles the delay on each attempt, capped at Max.
type ExponentialBackoff struct {
	// Base is the delay for the first retry.
	Base time.Duration
	// Max caps the computed delay.
	Max time.Duration
	// Jitter adds randomness to the delay (0.0 to 1.0).
	Jitter float64
}

// DefaultExponentialBackoff returns sensible defaults.
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Base:   100 * time.Millisecond,
		Max:    10 * time.Second,
		Jitter: 0.1,
	}
}

// Delay returns base*2^attempt capped at Max, or false for non-retryable
// categories.
func (b *ExponentialBackoff) Delay(attempt int, cat Category) (time.Duration, bool) {
	if !retryable(cat) {
		return 0, false
	}
	base := b.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	return jittered(base, b.Max, b.Jitter, attempt), true
}

// AdaptiveBackoff adjusts its base delay with the observed failure rate:
// upward when recent calls keep failing, downward when they recover.
// The base stays bounded within [Min, Max].
type AdaptiveBackoff struct {
	// Min is the lower bound for the adaptive base delay.
	Min time.Duration
	// Max bounds both the adaptive base and the computed delay.
	Max time.Duration
	// Jitter adds randomness to the delay (0.0 to 1.0).
	Jitter float64

	mu   sync.Mutex
	base time.Duration
}

// NewAdaptiveBackoff creates an AdaptiveBackoff starting at min.
func NewAdaptiveBackoff(min, max time.Duration, jitter float64) *AdaptiveBackoff {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = 10 * time.Second
	}
	return &AdaptiveBackoff{Min: min, Max: max, Jitter: jitter, base: min}
}

// Observe feeds the outcome of a call into the adaptive base.
func (b *AdaptiveBackoff) Observe(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if failed {
		b.base = minDuration(b.base*2, b.Max)
	} else {
		b.base = maxDuration(b.base/2, b.Min)
	}
}

// Base returns the current adaptive base delay.
func (b *AdaptiveBackoff) Base() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.base
}

// Delay returns the adaptive delay for an attempt, or false for
// non-retryable categories.
func (b *AdaptiveBackoff) Delay(attempt int, cat Category) (time.Duration, bool) {
	if !retryable(cat) {
		return 0, false
	}
	b.mu.Lock()
	base := b.base
	b.mu.Unlock()
	return jittered(base, b.Max, b.Jitter, attempt), true
}

func jittered(base, max time.Duration, jitter float64, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(base) * math.Pow(2, float64(attempt))
	if jitter > 0 {
		r := d * jitter
		d += (rand.Float64()*2 - 1) * r
	}
	if max > 0 && d > float64(max) {
		d = float64(max)
	}
	if d < 0 {
		d = float64(base)
	}
	return time.Duration(d)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
