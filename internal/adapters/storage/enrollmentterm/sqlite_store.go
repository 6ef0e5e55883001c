package enrollmentterm

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"academy/internal/adapters/storage"
	domain "academy/internal/domain/enrollmentterm"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new enrollment term store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const columns = "id, student_id, month, term_number, billed_amount, unit_price, source, status, billing_record_id, created_at"

// GetByID retrieves a term by its id.
// PRE: id is non-empty
// POST: Returns the term or a wrapped sql.ErrNoRows if absent
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Term, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM enrollment_term WHERE id = ?", id)
	term, err := scanTerm(row)
	if err == sql.ErrNoRows {
		return domain.Term{}, fmt.Errorf("enrollment term not found: %w", err)
	}
	return term, err
}

// GetActiveByBillingRecord retrieves the active term linked to a billing
// record. Cancelled terms do not count; a replacement term may reuse the
// billing record id.
// PRE: billingRecordID is non-empty
// POST: Returns (nil, nil) when no active term references the record
func (s *SQLiteStore) GetActiveByBillingRecord(ctx context.Context, billingRecordID string) (*domain.Term, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+columns+" FROM enrollment_term WHERE billing_record_id = ? AND status = ?",
		billingRecordID, domain.StatusActive)
	term, err := scanTerm(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &term, nil
}

// Save upserts a term.
// PRE: term has been validated
// POST: Term persisted; the partial unique index on active billing records
// rejects a second active term for the same billing record
func (s *SQLiteStore) Save(ctx context.Context, term domain.Term) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrollment_term (id, student_id, month, term_number, billed_amount, unit_price, source, status, billing_record_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			month=excluded.month, term_number=excluded.term_number,
			billed_amount=excluded.billed_amount, unit_price=excluded.unit_price,
			source=excluded.source, status=excluded.status,
			billing_record_id=excluded.billing_record_id`,
		term.ID, term.StudentID, term.Month, term.TermNumber, term.BilledAmount,
		term.UnitPrice, term.Source, term.Status, term.BillingRecordID,
		term.CreatedAt.Format(time.RFC3339Nano))
	return err
}

// ListByStudent retrieves all of a student's terms, newest month first.
// PRE: studentID is non-empty
// POST: Returns terms ordered by month descending, term number ascending
func (s *SQLiteStore) ListByStudent(ctx context.Context, studentID string) ([]domain.Term, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+columns+" FROM enrollment_term WHERE student_id = ? ORDER BY month DESC, term_number",
		studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTerms(rows)
}

// ListByMonth retrieves all terms starting in a month.
// PRE: month is YYYY-MM
// POST: Returns terms ordered by student then term number
func (s *SQLiteStore) ListByMonth(ctx context.Context, month string) ([]domain.Term, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+columns+" FROM enrollment_term WHERE month = ? ORDER BY student_id, term_number",
		month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTerms(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTerm(row rowScanner) (domain.Term, error) {
	var term domain.Term
	var createdStr string
	err := row.Scan(
		&term.ID,
		&term.StudentID,
		&term.Month,
		&term.TermNumber,
		&term.BilledAmount,
		&term.UnitPrice,
		&term.Source,
		&term.Status,
		&term.BillingRecordID,
		&createdStr,
	)
	if err != nil {
		return domain.Term{}, err
	}
	term.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return domain.Term{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return term, nil
}

func scanTerms(rows *sql.Rows) ([]domain.Term, error) {
	var results []domain.Term
	for rows.Next() {
		term, err := scanTerm(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, term)
	}
	return results, rows.Err()
}
