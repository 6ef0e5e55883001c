package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"academy/internal/domain/enrollmentterm"
)

// mockTermStore implements TermStore.
type mockTermStore struct {
	terms map[string]enrollmentterm.Term
}

func newMockTermStore() *mockTermStore {
	return &mockTermStore{terms: make(map[string]enrollmentterm.Term)}
}

func (m *mockTermStore) GetByID(_ context.Context, id string) (enrollmentterm.Term, error) {
	t, ok := m.terms[id]
	if !ok {
		return enrollmentterm.Term{}, errors.New("term not found")
	}
	return t, nil
}

func (m *mockTermStore) GetActiveByBillingRecord(_ context.Context, billingRecordID string) (*enrollmentterm.Term, error) {
	for _, t := range m.terms {
		if t.BillingRecordID == billingRecordID && t.Status == enrollmentterm.StatusActive {
			out := t
			return &out, nil
		}
	}
	return nil, nil
}

func (m *mockTermStore) Save(_ context.Context, t enrollmentterm.Term) error {
	m.terms[t.ID] = t
	return nil
}

func (m *mockTermStore) ListByStudent(_ context.Context, studentID string) ([]enrollmentterm.Term, error) {
	var out []enrollmentterm.Term
	for _, t := range m.terms {
		if t.StudentID == studentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func termDeps(store *mockTermStore) CreateEnrollmentTermDeps {
	seq := 0
	return CreateEnrollmentTermDeps{
		TermStore: store,
		Now:       func() time.Time { return time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) },
		NewID: func() string {
			seq++
			return fmt.Sprintf("term-%03d", seq)
		},
	}
}

func TestExecuteCreateEnrollmentTerm_IdempotentPerBillingRecord(t *testing.T) {
	store := newMockTermStore()
	deps := termDeps(store)
	input := CreateEnrollmentTermInput{
		StudentID:       "s1",
		Month:           "2026-01",
		BilledAmount:    400000,
		UnitPrice:       100000,
		Source:          "auto",
		BillingRecordID: "pay-777",
	}

	first, err := ExecuteCreateEnrollmentTerm(context.Background(), input, deps)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.TermNumber != 1 {
		t.Errorf("term number = %d, want 1", first.TermNumber)
	}

	second, err := ExecuteCreateEnrollmentTerm(context.Background(), input, deps)
	if !errors.Is(err, enrollmentterm.ErrTermExists) {
		t.Fatalf("err = %v, want ErrTermExists", err)
	}
	if !second.AlreadyExisted || second.TermID != first.TermID {
		t.Errorf("replay must return the existing term, got %+v", second)
	}
	if len(store.terms) != 1 {
		t.Errorf("terms stored = %d, want 1", len(store.terms))
	}
}

func TestExecuteCreateEnrollmentTerm_ManualAlwaysCreates(t *testing.T) {
	store := newMockTermStore()
	deps := termDeps(store)
	input := CreateEnrollmentTermInput{
		StudentID:    "s1",
		Month:        "2026-01",
		BilledAmount: 100000,
		UnitPrice:    100000,
		Source:       "manual",
	}

	first, err := ExecuteCreateEnrollmentTerm(context.Background(), input, deps)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := ExecuteCreateEnrollmentTerm(context.Background(), input, deps)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.TermID == second.TermID {
		t.Error("manual entries must each create a new term")
	}
	if second.TermNumber != 2 {
		t.Errorf("second term number = %d, want 2", second.TermNumber)
	}
}

func TestExecuteCreateEnrollmentTerm_NumberingCountsCancelled(t *testing.T) {
	store := newMockTermStore()
	deps := termDeps(store)

	first, err := ExecuteCreateEnrollmentTerm(context.Background(), CreateEnrollmentTermInput{
		StudentID: "s1", Month: "2026-01", Source: "auto", BillingRecordID: "pay-1",
		BilledAmount: 100000, UnitPrice: 100000,
	}, deps)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ExecuteCancelEnrollmentTerm(context.Background(), CancelEnrollmentTermInput{TermID: first.TermID, CancelledBy: "director"}, deps); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// The billing record is free again, but the number is never reused.
	replacement, err := ExecuteCreateEnrollmentTerm(context.Background(), CreateEnrollmentTermInput{
		StudentID: "s1", Month: "2026-01", Source: "auto", BillingRecordID: "pay-1",
		BilledAmount: 100000, UnitPrice: 100000,
	}, deps)
	if err != nil {
		t.Fatalf("replacement create: %v", err)
	}
	if replacement.TermNumber != 2 {
		t.Errorf("replacement term number = %d, want 2", replacement.TermNumber)
	}
}

func TestExecuteCancelEnrollmentTerm(t *testing.T) {
	store := newMockTermStore()
	deps := termDeps(store)

	created, err := ExecuteCreateEnrollmentTerm(context.Background(), CreateEnrollmentTermInput{
		StudentID: "s1", Month: "2026-01", Source: "manual",
		BilledAmount: 100000, UnitPrice: 100000,
	}, deps)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := ExecuteCancelEnrollmentTerm(context.Background(), CancelEnrollmentTermInput{TermID: created.TermID}, deps); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := store.terms[created.TermID].Status; got != enrollmentterm.StatusCancelled {
		t.Errorf("status = %q, want cancelled", got)
	}
}
