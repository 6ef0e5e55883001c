package orchestrators

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"academy/internal/domain/attendance"
	"academy/internal/domain/outbox"
	"academy/internal/domain/student"
)

// ErrDateOutsideWindow rejects status changes for dates outside the owning
// enrollment's validity window. Checked before any write.
var ErrDateOutsideWindow = errors.New("date is outside the enrollment validity window")

// AttendanceSyncStore is the store surface the status-change orchestrator
// needs: the current roster state and the atomic three-record write.
type AttendanceSyncStore interface {
	GetRosterRecord(ctx context.Context, classDate string, studentID string, classID string) (attendance.RosterRecord, error)
	SyncStatusChange(ctx context.Context, cell attendance.Cell, rec attendance.RosterRecord, entry attendance.HistoryEntry) error
}

// StatusChangeStudentStore resolves the student and their enrollments.
type StatusChangeStudentStore interface {
	GetByID(ctx context.Context, id string) (student.Student, error)
}

// OutboxEnqueuer appends a best-effort action for later processing.
type OutboxEnqueuer interface {
	Save(ctx context.Context, e outbox.Entry) error
}

// ApplyStatusChangeInput carries one status change for one cell.
type ApplyStatusChangeInput struct {
	StudentID string
	ClassID   string
	ClassName string
	DateKey   string // YYYY-MM-DD
	NewStatus attendance.Status
	ChangedBy string
}

// ApplyStatusChangeDeps holds dependencies for ApplyStatusChange.
type ApplyStatusChangeDeps struct {
	StudentStore StatusChangeStudentStore
	SyncStore    AttendanceSyncStore
	Outbox       OutboxEnqueuer // optional: nil skips the roster mirror enqueue

	Now   func() time.Time // defaults to time.Now
	NewID func() string    // defaults to uuid.NewString
}

// ApplyStatusChangeResult reports what the change produced.
type ApplyStatusChangeResult struct {
	RosterRecordID string
	PreviousStatus *attendance.Status // nil when no roster record existed

	// InvalidationKeys name the cached views the caller must refresh:
	// the affected date and the affected student-month.
	InvalidationKeys []string
}

// rosterMirrorPayload is the outbox payload for the best-effort mirrored
// roster write.
type rosterMirrorPayload struct {
	RecordID    string `json:"recordId"`
	ClassDate   string `json:"classDate"`
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	ClassID     string `json:"classId"`
	ClassName   string `json:"className"`
	Status      string `json:"status"`
	UpdatedBy   string `json:"updatedBy"`
}

// ExecuteApplyStatusChange coordinates one attendance status change: it
// validates the date against the owning enrollment's window, reads the
// current roster status, then commits the ledger cell, the roster record
// and one history entry in a single transaction. On success a best-effort
// roster mirror action is enqueued on the outbox; its failure never rolls
// back the primary change.
// PRE: Input identifies an enrolled (student, class); NewStatus is a named status
// POST: All three records committed together, or none; result carries the
// invalidation keys for the affected date and student-month
func ExecuteApplyStatusChange(ctx context.Context, input ApplyStatusChangeInput, deps ApplyStatusChangeDeps) (ApplyStatusChangeResult, error) {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	newID := uuid.NewString
	if deps.NewID != nil {
		newID = deps.NewID
	}

	if !attendance.IsNamed(input.NewStatus) {
		return ApplyStatusChangeResult{}, attendance.ErrBadStatus
	}
	date, err := time.ParseInLocation(attendance.DateFormat, input.DateKey, time.UTC)
	if err != nil {
		return ApplyStatusChangeResult{}, attendance.ErrBadDateKey
	}

	// Reject dates outside the enrollment window before any write.
	st, err := deps.StudentStore.GetByID(ctx, input.StudentID)
	if err != nil {
		return ApplyStatusChangeResult{}, fmt.Errorf("student lookup failed: %w", err)
	}
	if !enrollmentCovers(st, input.ClassName, date) {
		return ApplyStatusChangeResult{}, ErrDateOutsideWindow
	}

	// Current roster state; a missing record means this is the first status
	// for the (date, student, class) and previousStatus stays nil.
	var prev *attendance.Status
	rosterID := newID()
	existing, err := deps.SyncStore.GetRosterRecord(ctx, input.DateKey, input.StudentID, input.ClassID)
	switch {
	case err == nil:
		s := existing.Status
		prev = &s
		rosterID = existing.ID
	case errors.Is(err, sql.ErrNoRows):
		// first change for this date
	default:
		return ApplyStatusChangeResult{}, fmt.Errorf("roster lookup failed: %w", err)
	}

	ts := now()
	value := attendance.ValueFromStatus(input.NewStatus)
	cell := attendance.Cell{
		StudentID: input.StudentID,
		ClassName: input.ClassName,
		DateKey:   input.DateKey,
		Value:     &value,
		UpdatedAt: ts,
	}
	rec := attendance.RosterRecord{
		ID:          rosterID,
		ClassDate:   input.DateKey,
		StudentID:   input.StudentID,
		StudentName: st.Name,
		ClassID:     input.ClassID,
		ClassName:   input.ClassName,
		Status:      input.NewStatus,
		UpdatedBy:   input.ChangedBy,
		UpdatedAt:   ts,
	}
	entry := attendance.HistoryEntry{
		ID:             newID(),
		ClassDate:      input.DateKey,
		StudentID:      input.StudentID,
		ClassID:        input.ClassID,
		PreviousStatus: prev,
		NewStatus:      input.NewStatus,
		ChangedBy:      input.ChangedBy,
		CreatedAt:      ts,
	}
	if err := rec.Validate(); err != nil {
		return ApplyStatusChangeResult{}, err
	}
	if err := entry.Validate(); err != nil {
		return ApplyStatusChangeResult{}, err
	}

	if err := deps.SyncStore.SyncStatusChange(ctx, cell, rec, entry); err != nil {
		return ApplyStatusChangeResult{}, err
	}

	slog.Info("attendance_event", "event", "status_changed",
		"student_id", input.StudentID, "class", input.ClassName,
		"date", input.DateKey, "status", string(input.NewStatus),
		"changed_by", input.ChangedBy)

	// Best-effort roster mirror for the separate reporting view. Enqueue
	// failure is logged and swallowed; the primary change already committed.
	if deps.Outbox != nil {
		if err := enqueueRosterMirror(ctx, deps.Outbox, rec, ts, newID); err != nil {
			slog.Warn("roster_mirror_enqueue_failed", "record_id", rec.ID, "error", err.Error())
		}
	}

	return ApplyStatusChangeResult{
		RosterRecordID: rosterID,
		PreviousStatus: prev,
		InvalidationKeys: []string{
			"roster:" + input.DateKey,
			"ledger:" + input.StudentID + ":" + attendance.MonthOf(input.DateKey),
		},
	}, nil
}

func enqueueRosterMirror(ctx context.Context, store OutboxEnqueuer, rec attendance.RosterRecord, ts time.Time, newID func() string) error {
	payload, err := json.Marshal(rosterMirrorPayload{
		RecordID:    rec.ID,
		ClassDate:   rec.ClassDate,
		StudentID:   rec.StudentID,
		StudentName: rec.StudentName,
		ClassID:     rec.ClassID,
		ClassName:   rec.ClassName,
		Status:      string(rec.Status),
		UpdatedBy:   rec.UpdatedBy,
	})
	if err != nil {
		return err
	}
	e := outbox.Entry{
		ID:          newID(),
		ActionType:  outbox.ActionTypeRosterMirror,
		Payload:     string(payload),
		Status:      outbox.StatusPending,
		MaxAttempts: 5,
		CreatedAt:   ts,
	}
	if err := e.Validate(); err != nil {
		return err
	}
	return store.Save(ctx, e)
}

// enrollmentCovers returns true if the student has an enrollment for the
// class whose validity window contains the date.
func enrollmentCovers(st student.Student, className string, date time.Time) bool {
	for i := range st.Enrollments {
		e := &st.Enrollments[i]
		if e.ClassName == className && e.WindowContains(date) {
			return true
		}
	}
	return false
}
