// Package errors provides failure classification and recovery policy for
// gatekit. It classifies backend failures into a closed set of categories,
// keeps a bounded rolling window of classifications for analytics, and maps
// each category to a configurable handling policy with pluggable backoff
// strategies.
//
// Callers conventionally import this package as apperrors to avoid
// shadowing the standard library:
//
//	apperrors "github.com/analyticore/gatekit/errors"
package errors
