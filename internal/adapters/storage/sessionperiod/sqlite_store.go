package sessionperiod

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"academy/internal/adapters/storage"
	domain "academy/internal/domain/sessionperiod"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new session period store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// storedRange is the JSON shape of one date range inside ranges_json.
type storedRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Get retrieves the period for (year, category, month).
// POST: Returns (nil, nil) when the period has not been configured
func (s *SQLiteStore) Get(ctx context.Context, year int, category string, month int) (*domain.Period, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, year, category, month, ranges_json, sessions_count FROM session_period WHERE id = ?",
		domain.PeriodID(year, category, month))

	p, err := scanPeriod(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Save upserts a period. The row id is derived from (year, category, month).
// PRE: p has been validated
// POST: Period persisted
func (s *SQLiteStore) Save(ctx context.Context, p domain.Period) error {
	ranges := make([]storedRange, len(p.Ranges))
	for i, r := range p.Ranges {
		ranges[i] = storedRange{Start: r.StartKey, End: r.EndKey}
	}
	rangesJSON, err := json.Marshal(ranges)
	if err != nil {
		return fmt.Errorf("failed to marshal ranges: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_period (id, year, category, month, ranges_json, sessions_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ranges_json=excluded.ranges_json, sessions_count=excluded.sessions_count`,
		domain.PeriodID(p.Year, p.Category, p.Month), p.Year, p.Category, p.Month,
		string(rangesJSON), p.SessionsCount)
	return err
}

// ListByYear retrieves all periods configured for a year.
// POST: Returns periods ordered by category then month
func (s *SQLiteStore) ListByYear(ctx context.Context, year int) ([]domain.Period, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, year, category, month, ranges_json, sessions_count FROM session_period WHERE year = ? ORDER BY category, month",
		year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPeriod(row rowScanner) (domain.Period, error) {
	var p domain.Period
	var rangesJSON string
	err := row.Scan(&p.ID, &p.Year, &p.Category, &p.Month, &rangesJSON, &p.SessionsCount)
	if err != nil {
		return domain.Period{}, err
	}
	var stored []storedRange
	if err := json.Unmarshal([]byte(rangesJSON), &stored); err != nil {
		return domain.Period{}, fmt.Errorf("failed to unmarshal ranges: %w", err)
	}
	for _, r := range stored {
		p.Ranges = append(p.Ranges, domain.DateRange{StartKey: r.Start, EndKey: r.End})
	}
	return p, nil
}
