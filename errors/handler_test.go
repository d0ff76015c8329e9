package errors

import (
	"errors"
	"testing"
	"time"
)

func TestHandler_DefaultPolicies(t *testing.T) {
	h := NewHandler(nil)

	cases := []struct {
		cat  Category
		want Action
	}{
		{CategoryTransient, ActionRetry},
		{CategoryRateLimit, ActionRetry},
		{CategoryAuth, ActionFail},
		{CategoryValidation, ActionFallbackDefault},
		{CategoryPermanent, ActionFail},
		{CategoryUnknown, ActionFallbackCache},
	}

	for _, tc := range cases {
		if got := h.Policy(tc.cat).Action; got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.cat, tc.want, got)
		}
	}
}

func TestHandler_RateLimitHonorsHint(t *testing.T) {
	h := NewHandler(&ExponentialBackoff{Base: 10 * time.Millisecond, Max: time.Minute})

	err := &RateLimitError{RetryAfter: 2 * time.Second}
	_, _, delay, retry := h.Handle(err, 0)

	if !retry {
		t.Fatal("expected retry for rate limit")
	}
	if delay != 2*time.Second {
		t.Errorf("expected hint-driven 2s delay, got %v", delay)
	}
}

func TestHandler_AuthAlertsAndFails(t *testing.T) {
	h := NewHandler(nil)
	var alerted *Record
	h.OnAlert = func(rec Record) { alerted = &rec }

	rec, policy, _, retry := h.Handle(&AuthError{Reason: "revoked"}, 0)

	if retry {
		t.Error("auth failures must not retry")
	}
	if policy.Action != ActionFail || !policy.Alert {
		t.Errorf("unexpected policy %+v", policy)
	}
	if alerted == nil || alerted.Category != CategoryAuth {
		t.Error("expected alert hook to fire with auth record")
	}
	if rec.Category != CategoryAuth {
		t.Errorf("expected auth record, got %s", rec.Category)
	}
}

func TestHandler_SetPolicyOverrides(t *testing.T) {
	h := NewHandler(nil)
	h.SetPolicy(CategoryUnknown, Policy{Action: ActionFail})

	_, policy, _, retry := h.Handle(errors.New("odd"), 0)
	if retry || policy.Action != ActionFail {
		t.Errorf("expected overridden fail policy, got %+v retry=%v", policy, retry)
	}
}

func TestWindow_BoundedAndOrdered(t *testing.T) {
	w := NewWindow(3)
	for i := 0; i < 5; i++ {
		w.Add(Record{Category: CategoryTransient, Summary: string(rune('a' + i))})
	}

	recent := w.Recent()
	if len(recent) != 3 {
		t.Fatalf("expected 3 retained records, got %d", len(recent))
	}
	if recent[0].Summary != "c" || recent[2].Summary != "e" {
		t.Errorf("unexpected retention order: %v", recent)
	}
	if w.Counts()[CategoryTransient] != 5 {
		t.Errorf("expected cumulative count 5, got %d", w.Counts()[CategoryTransient])
	}
}
