package errors

import "time"

// Action is what the caller should do with a classified failure.
type Action int

const (
	// ActionFail surfaces the error immediately.
	ActionFail Action = iota
	// ActionRetry retries with the configured backoff strategy.
	ActionRetry
	// ActionFallbackCache serves a cached value if one exists, then a
	// configured default, then fails.
	ActionFallbackCache
	// ActionFallbackDefault serves a configured default value, then fails.
	ActionFallbackDefault
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFallbackCache:
		return "fallback_cache"
	case ActionFallbackDefault:
		return "fallback_default"
	default:
		return "fail"
	}
}

// Policy describes how one category of failure is handled.
type Policy struct {
	Action Action
	// Alert marks failures that should page an operator (auth failures).
	Alert bool
}

// Handler maps failure categories to handling policies. The mapping is
// configuration, not code: operators can retune it without changing call
// sites.
type Handler struct {
	policies map[Category]Policy
	strategy Strategy
	// OnAlert is invoked for policies with Alert set.
	OnAlert func(Record)
}

// NewHandler creates a Handler with the default category policies:
// transient and rate-limit failures retry, auth fails immediately with an
// alert, validation falls back to a default, permanent fails, and unknown
// falls back to cache then default.
func NewHandler(strategy Strategy) *Handler {
	if strategy == nil {
		strategy = DefaultExponentialBackoff()
	}
	return &Handler{
		strategy: strategy,
		policies: map[Category]Policy{
			CategoryTransient:  {Action: ActionRetry},
			CategoryRateLimit:  {Action: ActionRetry},
			CategoryAuth:       {Action: ActionFail, Alert: true},
			CategoryValidation: {Action: ActionFallbackDefault},
			CategoryPermanent:  {Action: ActionFail},
			CategoryUnknown:    {Action: ActionFallbackCache},
		},
	}
}

// SetPolicy overrides the policy for a category.
func (h *Handler) SetPolicy(cat Category, p Policy) {
	h.policies[cat] = p
}

// Policy returns the policy for a category.
func (h *Handler) Policy(cat Category) Policy {
	if p, ok := h.policies[cat]; ok {
		return p
	}
	return Policy{Action: ActionFail}
}

// Handle classifies a failure and returns the policy plus the retry delay
// for the given attempt. The delay honors a dependency-provided rate-limit
// hint when one is larger than the strategy's delay. retry is false when
// the policy does not permit another attempt.
func (h *Handler) Handle(err error, attempt int) (rec Record, policy Policy, delay time.Duration, retry bool) {
	rec = NewRecord(err, "")
	policy = h.Policy(rec.Category)

	if policy.Alert && h.OnAlert != nil {
		h.OnAlert(rec)
	}

	if policy.Action != ActionRetry {
		return rec, policy, 0, false
	}

	delay, retry = h.strategy.Delay(attempt, rec.Category)
	if !retry {
		return rec, policy, 0, false
	}
	if hint, ok := RetryAfterHint(err); ok && hint > delay {
		delay = hint
	}
	return rec, policy, delay, true
}
