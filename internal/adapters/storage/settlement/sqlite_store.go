package settlement

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"academy/internal/adapters/storage"
	"academy/internal/adapters/storage/compconfig"
	domain "academy/internal/domain/settlement"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new settlement store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const columns = "teacher_id, month, has_blog_bonus, has_retention_bonus, other_amount, note, is_finalized, finalized_at, frozen_config_json"

// Get retrieves one teacher-month settlement.
// PRE: teacherID is non-empty, month is YYYY-MM
// POST: Returns (nil, nil) when the settlement does not exist
func (s *SQLiteStore) Get(ctx context.Context, teacherID string, month string) (*domain.Monthly, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+columns+" FROM monthly_settlement WHERE teacher_id = ? AND month = ?",
		teacherID, month)

	m, err := scanSettlement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Save upserts a settlement.
// PRE: m has been validated
// POST: Settlement persisted, frozen config serialized as JSON
func (s *SQLiteStore) Save(ctx context.Context, m domain.Monthly) error {
	frozenJSON, err := compconfig.MarshalConfig(m.FrozenConfig)
	if err != nil {
		return err
	}
	var frozenVal, finalizedVal any
	if frozenJSON != "" {
		frozenVal = frozenJSON
	}
	if !m.FinalizedAt.IsZero() {
		finalizedVal = m.FinalizedAt.Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO monthly_settlement (teacher_id, month, has_blog_bonus, has_retention_bonus, other_amount, note, is_finalized, finalized_at, frozen_config_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(teacher_id, month) DO UPDATE SET
			has_blog_bonus=excluded.has_blog_bonus, has_retention_bonus=excluded.has_retention_bonus,
			other_amount=excluded.other_amount, note=excluded.note,
			is_finalized=excluded.is_finalized, finalized_at=excluded.finalized_at,
			frozen_config_json=excluded.frozen_config_json`,
		m.TeacherID, m.Month, boolToInt(m.HasBlogBonus), boolToInt(m.HasRetentionBonus),
		m.OtherAmount, m.Note, boolToInt(m.IsFinalized), finalizedVal, frozenVal)
	return err
}

// ListByMonth retrieves every teacher's settlement for a month.
// PRE: month is YYYY-MM
// POST: Returns settlements ordered by teacher id
func (s *SQLiteStore) ListByMonth(ctx context.Context, month string) ([]domain.Monthly, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+columns+" FROM monthly_settlement WHERE month = ? ORDER BY teacher_id",
		month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Monthly
	for rows.Next() {
		m, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row rowScanner) (domain.Monthly, error) {
	var m domain.Monthly
	var hasBlog, hasRetention, isFinalized int
	var finalizedAt, frozenJSON sql.NullString
	err := row.Scan(
		&m.TeacherID,
		&m.Month,
		&hasBlog,
		&hasRetention,
		&m.OtherAmount,
		&m.Note,
		&isFinalized,
		&finalizedAt,
		&frozenJSON,
	)
	if err != nil {
		return domain.Monthly{}, err
	}
	m.HasBlogBonus = hasBlog != 0
	m.HasRetentionBonus = hasRetention != 0
	m.IsFinalized = isFinalized != 0
	if finalizedAt.Valid {
		m.FinalizedAt, err = time.Parse(time.RFC3339Nano, finalizedAt.String)
		if err != nil {
			return domain.Monthly{}, fmt.Errorf("failed to parse finalized_at: %w", err)
		}
	}
	if frozenJSON.Valid {
		m.FrozenConfig, err = compconfig.UnmarshalConfig(frozenJSON.String)
		if err != nil {
			return domain.Monthly{}, err
		}
	}
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
