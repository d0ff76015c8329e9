package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	apperrors "github.com/analyticore/gatekit/errors"
)

func TestValidatorRequired(t *testing.T) {
	if err := New().Required("operation", "centrality").Err(); err != nil {
		t.Errorf("expected no error for non-empty value, got %v", err)
	}
	if err := New().Required("operation", "").Err(); err == nil {
		t.Error("expected error for empty required field")
	}
	if err := New().Required("operation", "   ").Err(); err == nil {
		t.Error("expected error for whitespace-only required field")
	}
}

func TestValidatorRequiredUUID(t *testing.T) {
	if err := New().RequiredUUID("id", uuid.NewString()).Err(); err != nil {
		t.Errorf("expected no error for valid UUID, got %v", err)
	}
	if err := New().RequiredUUID("id", "not-a-uuid").Err(); err == nil {
		t.Error("expected error for malformed UUID")
	}
	if err := New().RequiredUUID("id", uuid.Nil.String()).Err(); err == nil {
		t.Error("expected error for nil UUID")
	}
}

func TestValidatorRange(t *testing.T) {
	if err := New().Range("priority", 2, 0, 3).Err(); err != nil {
		t.Errorf("expected no error for in-range value, got %v", err)
	}
	if err := New().Range("priority", 7, 0, 3).Err(); err == nil {
		t.Error("expected error for out-of-range value")
	}
}

func TestValidatorOneOf(t *testing.T) {
	allowed := []string{"development", "staging", "production"}
	if err := New().OneOf("environment", "staging", allowed).Err(); err != nil {
		t.Errorf("expected no error for allowed value, got %v", err)
	}
	if err := New().OneOf("environment", "", allowed).Err(); err != nil {
		t.Errorf("expected empty value to pass OneOf, got %v", err)
	}
	if err := New().OneOf("environment", "prod", allowed).Err(); err == nil {
		t.Error("expected error for disallowed value")
	}
}

func TestValidatorAggregatesFailures(t *testing.T) {
	v := New().
		Required("operation", "").
		Range("priority", 9, 0, 3)
	if len(v.Errors()) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(v.Errors()))
	}

	err := v.Err()
	verr, ok := err.(*apperrors.ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Field != "operation" {
		t.Errorf("expected first failing field in error, got %q", verr.Field)
	}
	if !strings.Contains(verr.Reason, "priority") {
		t.Errorf("expected second failure in reason, got %q", verr.Reason)
	}
}

func TestValidatorErrClassifiesAsValidation(t *testing.T) {
	err := New().Required("operation", "").Err()
	if got := apperrors.Classify(err); got != apperrors.CategoryValidation {
		t.Errorf("expected validation category, got %s", got)
	}
}

func TestValidateStruct(t *testing.T) {
	type descriptor struct {
		ID   string `json:"service_id" validate:"required"`
		Type string `json:"service_type" validate:"required,oneof=analytics-engine aggregator"`
	}

	if err := ValidateStruct(descriptor{ID: "svc-1", Type: "aggregator"}); err != nil {
		t.Errorf("expected valid struct to pass, got %v", err)
	}

	err := ValidateStruct(descriptor{Type: "database"})
	if err == nil {
		t.Fatal("expected error for invalid struct")
	}
	verr, ok := err.(*apperrors.ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Field != "service_id" {
		t.Errorf("expected json tag name in field, got %q", verr.Field)
	}
	if !strings.Contains(verr.Reason, "service_type must be one of") {
		t.Errorf("expected oneof failure in reason, got %q", verr.Reason)
	}
}

func TestToSnakeCase(t *testing.T) {
	cases := map[string]string{
		"QueueCapacity": "queue_capacity",
		"ID":            "i_d",
		"Workers":       "workers",
	}
	for in, want := range cases {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
