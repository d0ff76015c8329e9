package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// RateLimitError signals that a dependency rejected the call due to rate
// limiting. RetryAfter carries the dependency's retry hint when present.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
	}
	return "rate limited"
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// AuthError signals an authorization or permission failure.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Reason != "" {
		return "authorization failed: " + e.Reason
	}
	return "authorization failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

// ValidationError signals malformed input rejected by a dependency.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid input for %s: %s", e.Field, e.Reason)
	}
	return "invalid input: " + e.Reason
}

// TransientError marks a failure known to be transient at the boundary
// that produced it (e.g. a 5xx from a backend), regardless of its text.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient failure: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// UnsupportedError signals a configuration or unsupported-operation failure.
// These are permanent: retrying the same call cannot succeed.
type UnsupportedError struct {
	Operation string
}

func (e *UnsupportedError) Error() string {
	return "unsupported operation: " + e.Operation
}

// Classify maps an error to a Category using a prioritized rule set.
// Classification is pure: the same error shape always yields the same
// category.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var rle *RateLimitError
	if errors.As(err, &rle) {
		return CategoryRateLimit
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return CategoryAuth
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return CategoryValidation
	}
	var ue *UnsupportedError
	if errors.As(err, &ue) {
		return CategoryPermanent
	}

	var te *TransientError
	if errors.As(err, &te) {
		return CategoryTransient
	}

	if isTransient(err) {
		return CategoryTransient
	}

	return CategoryUnknown
}

// isTransient matches connection and timeout signatures.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	// Last resort: textual signatures from dependencies that do not
	// surface typed errors.
	msg := strings.ToLower(err.Error())
	for _, sig := range []string{"connection refused", "connection reset", "timeout", "timed out", "no such host", "broken pipe"} {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// RetryAfterHint extracts a dependency-provided retry hint, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		return rle.RetryAfter, true
	}
	return 0, false
}
