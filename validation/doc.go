// Package validation provides input validation for gatekit boundaries.
//
// Struct-tag validation (ValidateStruct) covers configuration and service
// descriptors; the fluent Validator covers per-request checks where tags
// do not fit. Both report failures as *errors.ValidationError, which the
// classifier treats as permanent.
//
// # Struct Tag Validation
//
//	type Descriptor struct {
//	    ID   string `validate:"required"`
//	    Type string `validate:"required,oneof=analytics-engine aggregator"`
//	}
//	err := validation.ValidateStruct(d)
//
// # Fluent Validation
//
//	err := validation.New().
//	    Required("operation", req.Operation).
//	    Range("priority", int(req.Priority), 0, 3).
//	    Err()
package validation
