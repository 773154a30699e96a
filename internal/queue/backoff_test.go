package queue

import (
	"testing"
	"time"
)

func TestAttemptRecordsCeiling(t *testing.T) {
	t.Parallel()

	now := time.Now()
	a := NewAttemptRecords()
	a.now = func() time.Time { return now }

	const loc = "https://example.com/v"

	for i := range 3 {
		if !a.Allowed(loc) {
			t.Fatalf("attempt %d: want allowed", i+1)
		}
		a.RecordFailure(loc)
	}

	// Three failures hit the ceiling: the fourth attempt is suppressed.
	if a.Allowed(loc) {
		t.Fatal("4th attempt immediately after 3 failures: want suppressed")
	}

	// Backoff window elapses: eligible again with a reset counter.
	now = now.Add(5 * time.Minute)
	if !a.Allowed(loc) {
		t.Fatal("after backoff window: want allowed")
	}
	if got := a.Failures(loc); got != 0 {
		t.Errorf("failure count after backoff reset = %d, want 0", got)
	}
}

func TestAttemptRecordsSuccessClears(t *testing.T) {
	t.Parallel()

	a := NewAttemptRecords()
	const loc = "https://example.com/v"

	a.RecordFailure(loc)
	a.RecordFailure(loc)
	a.RecordSuccess(loc)

	if got := a.Failures(loc); got != 0 {
		t.Errorf("failure count after success = %d, want 0", got)
	}
	if !a.Allowed(loc) {
		t.Error("locator not allowed after success")
	}
}

func TestAttemptRecordsIndependentLocators(t *testing.T) {
	t.Parallel()

	now := time.Now()
	a := NewAttemptRecords()
	a.now = func() time.Time { return now }

	for range 3 {
		a.RecordFailure("bad")
	}
	if a.Allowed("bad") {
		t.Error("failing locator: want suppressed")
	}
	if !a.Allowed("good") {
		t.Error("unrelated locator: want allowed")
	}
}
