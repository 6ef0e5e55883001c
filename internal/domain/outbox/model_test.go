package outbox_test

import (
	"errors"
	"testing"
	"time"

	"academy/internal/domain/outbox"
)

func pendingEntry() outbox.Entry {
	return outbox.Entry{
		ID:          "o1",
		ActionType:  outbox.ActionTypeRosterMirror,
		Payload:     `{"recordId":"r1"}`,
		Status:      outbox.StatusPending,
		MaxAttempts: 3,
		CreatedAt:   time.Now(),
	}
}

// TestEntry_Validate tests validation of Entry.
func TestEntry_Validate(t *testing.T) {
	e := pendingEntry()
	if err := e.Validate(); err != nil {
		t.Errorf("valid entry rejected: %v", err)
	}

	noType := pendingEntry()
	noType.ActionType = ""
	if err := noType.Validate(); err == nil {
		t.Error("expected error for empty action type")
	}

	noPayload := pendingEntry()
	noPayload.Payload = ""
	if err := noPayload.Validate(); err == nil {
		t.Error("expected error for empty payload")
	}
}

// TestEntry_RetryLifecycle walks an entry through attempts to failure.
func TestEntry_RetryLifecycle(t *testing.T) {
	e := pendingEntry()

	if !e.CanRetry() {
		t.Fatal("fresh pending entry should be retryable")
	}

	for i := 0; i < 3; i++ {
		e.MarkAttempt()
		e.MarkFailed(errors.New("mirror write refused"))
	}

	if e.CanRetry() {
		t.Error("entry at max attempts should not be retryable")
	}
	if !e.IsTerminal() {
		t.Error("failed entry at max attempts should be terminal")
	}
	if e.Status != outbox.StatusFailed {
		t.Errorf("status = %q, want failed", e.Status)
	}
}

// TestEntry_MarkSuccess verifies the done transition clears the error.
func TestEntry_MarkSuccess(t *testing.T) {
	e := pendingEntry()
	e.MarkAttempt()
	e.MarkFailed(errors.New("transient"))
	e.MarkSuccess("mirror-r1")

	if e.Status != outbox.StatusDone || e.ExternalID != "mirror-r1" || e.ErrorMessage != "" {
		t.Errorf("unexpected entry after success: %+v", e)
	}
	if !e.IsTerminal() {
		t.Error("done entry should be terminal")
	}
}

// TestEntry_NextRetryDelay verifies exponential backoff with a cap.
func TestEntry_NextRetryDelay(t *testing.T) {
	e := pendingEntry()
	base := 30 * time.Second
	max := time.Hour

	e.Attempts = 1
	if got := e.NextRetryDelay(base, max); got != time.Minute {
		t.Errorf("delay after 1 attempt = %v, want 1m", got)
	}
	e.Attempts = 10
	if got := e.NextRetryDelay(base, max); got != max {
		t.Errorf("delay is not capped: %v", got)
	}
}
