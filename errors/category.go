package errors

import "time"

// Category classifies a failure for routing and recovery decisions.
type Category int

const (
	// CategoryUnknown is the default for errors no rule matches.
	CategoryUnknown Category = iota
	// CategoryTransient covers connection failures and timeouts.
	CategoryTransient
	// CategoryPermanent covers configuration and unsupported-operation errors.
	CategoryPermanent
	// CategoryRateLimit covers explicit rate-limit signals.
	CategoryRateLimit
	// CategoryAuth covers authorization and permission failures.
	CategoryAuth
	// CategoryValidation covers malformed-input failures.
	CategoryValidation
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryRateLimit:
		return "rate_limit"
	case CategoryAuth:
		return "auth"
	case CategoryValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Categories lists every category in a stable order, for snapshots.
func Categories() []Category {
	return []Category{
		CategoryUnknown,
		CategoryTransient,
		CategoryPermanent,
		CategoryRateLimit,
		CategoryAuth,
		CategoryValidation,
	}
}

// Record is the result of classifying a single failure.
type Record struct {
	Category Category  `json:"category"`
	Summary  string    `json:"summary"`
	Source   string    `json:"source"`
	Time     time.Time `json:"time"`
}

// NewRecord classifies err and captures its summary.
func NewRecord(err error, source string) Record {
	return Record{
		Category: Classify(err),
		Summary:  err.Error(),
		Source:   source,
		Time:     time.Now(),
	}
}
