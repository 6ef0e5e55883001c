package holiday

import (
	"context"
	"database/sql"
	"fmt"

	"academy/internal/adapters/storage"
	domain "academy/internal/domain/holiday"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new holiday store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a holiday by its id.
// PRE: id is non-empty
// POST: Returns the holiday or a wrapped sql.ErrNoRows if absent
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Holiday, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, start_date, end_date FROM holiday WHERE id = ?", id)

	var h domain.Holiday
	err := row.Scan(&h.ID, &h.Name, &h.StartKey, &h.EndKey)
	if err == sql.ErrNoRows {
		return domain.Holiday{}, fmt.Errorf("holiday not found: %w", err)
	}
	return h, err
}

// Save upserts a holiday.
// PRE: h has been validated
// POST: Holiday persisted
func (s *SQLiteStore) Save(ctx context.Context, h domain.Holiday) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holiday (id, name, start_date, end_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, start_date=excluded.start_date, end_date=excluded.end_date`,
		h.ID, h.Name, h.StartKey, h.EndKey)
	return err
}

// Delete removes a holiday.
// PRE: id is non-empty
// POST: Holiday with given id is removed
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM holiday WHERE id = ?", id)
	return err
}

// List retrieves all holidays ordered by start date.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Holiday, error) {
	return s.query(ctx, "SELECT id, name, start_date, end_date FROM holiday ORDER BY start_date")
}

// ListOverlapping retrieves holidays intersecting [fromKey, toKey]. Date
// keys compare lexicographically.
// PRE: fromKey <= toKey, both YYYY-MM-DD
// POST: Returns overlapping holidays ordered by start date
func (s *SQLiteStore) ListOverlapping(ctx context.Context, fromKey string, toKey string) ([]domain.Holiday, error) {
	return s.query(ctx,
		"SELECT id, name, start_date, end_date FROM holiday WHERE start_date <= ? AND end_date >= ? ORDER BY start_date",
		toKey, fromKey)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]domain.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Holiday
	for rows.Next() {
		var h domain.Holiday
		if err := rows.Scan(&h.ID, &h.Name, &h.StartKey, &h.EndKey); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}
