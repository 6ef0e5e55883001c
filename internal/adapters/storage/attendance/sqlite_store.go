package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"academy/internal/adapters/storage"
	domain "academy/internal/domain/attendance"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new attendance store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const cellColumns = "student_id, class_name, date_key, value, memo, homework, cell_color, updated_at"

// GetCell retrieves one ledger cell by its key.
// PRE: key is valid
// POST: Returns the cell or a wrapped sql.ErrNoRows if absent
func (s *SQLiteStore) GetCell(ctx context.Context, key domain.CellKey) (domain.Cell, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+cellColumns+" FROM ledger_cell WHERE student_id = ? AND class_name = ? AND date_key = ?",
		key.StudentID, key.ClassName, key.DateKey)

	cell, err := scanCell(row)
	if err == sql.ErrNoRows {
		return domain.Cell{}, fmt.Errorf("ledger cell not found: %w", err)
	}
	return cell, err
}

// SaveCell upserts a full ledger cell (value and annotations).
// PRE: cell key is valid
// POST: Cell is persisted; year_month is derived from the date key
func (s *SQLiteStore) SaveCell(ctx context.Context, cell domain.Cell) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_cell (student_id, year_month, class_name, date_key, value, memo, homework, cell_color, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, class_name, date_key) DO UPDATE SET
			value=excluded.value, memo=excluded.memo, homework=excluded.homework,
			cell_color=excluded.cell_color, updated_at=excluded.updated_at`,
		cell.StudentID, domain.MonthOf(cell.DateKey), cell.ClassName, cell.DateKey,
		nullableValue(cell.Value), cell.Memo, boolToInt(cell.Homework), cell.CellColor,
		cell.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

// SaveAnnotations upserts only the annotation fields of a cell, leaving any
// existing value untouched. Annotations are writable independently of the
// status value, including on cells with no value yet.
// PRE: cell key is valid
// POST: memo/homework/cell_color persisted; existing value preserved
func (s *SQLiteStore) SaveAnnotations(ctx context.Context, cell domain.Cell) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_cell (student_id, year_month, class_name, date_key, value, memo, homework, cell_color, updated_at)
		VALUES (?, ?, ?, ?, NULL, ?, ?, ?, ?)
		ON CONFLICT(student_id, class_name, date_key) DO UPDATE SET
			memo=excluded.memo, homework=excluded.homework,
			cell_color=excluded.cell_color, updated_at=excluded.updated_at`,
		cell.StudentID, domain.MonthOf(cell.DateKey), cell.ClassName, cell.DateKey,
		cell.Memo, boolToInt(cell.Homework), cell.CellColor,
		cell.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

// ListCellsByStudentMonth retrieves all of a student's cells in a year-month.
// PRE: studentID is non-empty, month is YYYY-MM
// POST: Returns cells ordered by date then class
func (s *SQLiteStore) ListCellsByStudentMonth(ctx context.Context, studentID string, month string) ([]domain.Cell, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+cellColumns+" FROM ledger_cell WHERE student_id = ? AND year_month = ? ORDER BY date_key, class_name",
		studentID, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCells(rows)
}

// ListCellsByStudentRange retrieves a student's cells within a date-key range
// (inclusive). Date keys compare lexicographically.
// PRE: fromKey <= toKey, both YYYY-MM-DD
// POST: Returns cells ordered by date then class
func (s *SQLiteStore) ListCellsByStudentRange(ctx context.Context, studentID string, fromKey string, toKey string) ([]domain.Cell, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+cellColumns+" FROM ledger_cell WHERE student_id = ? AND date_key >= ? AND date_key <= ? ORDER BY date_key, class_name",
		studentID, fromKey, toKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCells(rows)
}

const rosterColumns = "id, class_date, student_id, student_name, class_id, class_name, status, check_in_time, check_out_time, note, updated_by, updated_at"

// GetRosterRecord retrieves the roster record for one (date, student, class).
// PRE: classDate is YYYY-MM-DD, studentID is non-empty
// POST: Returns the record or a wrapped sql.ErrNoRows if absent
func (s *SQLiteStore) GetRosterRecord(ctx context.Context, classDate string, studentID string, classID string) (domain.RosterRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+rosterColumns+" FROM roster_record WHERE class_date = ? AND student_id = ? AND class_id = ?",
		classDate, studentID, classID)

	rec, err := scanRosterRow(row)
	if err == sql.ErrNoRows {
		return domain.RosterRecord{}, fmt.Errorf("roster record not found: %w", err)
	}
	return rec, err
}

// SaveRosterRecord upserts a roster record keyed by (date, student, class).
// PRE: rec has been validated
// POST: Record is persisted; the original id survives updates
func (s *SQLiteStore) SaveRosterRecord(ctx context.Context, rec domain.RosterRecord) error {
	_, err := s.db.ExecContext(ctx, upsertRosterSQL, rosterArgs(rec)...)
	return err
}

// ListRosterByDate retrieves all roster records for a class date.
// PRE: classDate is YYYY-MM-DD
// POST: Returns records ordered by class then student name
func (s *SQLiteStore) ListRosterByDate(ctx context.Context, classDate string) ([]domain.RosterRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+rosterColumns+" FROM roster_record WHERE class_date = ? ORDER BY class_name, student_name",
		classDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.RosterRecord
	for rows.Next() {
		rec, err := scanRosterRows(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// AppendHistory inserts one immutable history entry.
// PRE: entry has been validated
// POST: Entry is inserted; duplicate ids fail
func (s *SQLiteStore) AppendHistory(ctx context.Context, entry domain.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx, insertHistorySQL, historyArgs(entry)...)
	return err
}

// ListHistoryByStudent retrieves history entries for a student within a
// class-date range (inclusive), newest first.
// PRE: studentID is non-empty, fromKey <= toKey
// POST: Returns entries ordered by created_at descending
func (s *SQLiteStore) ListHistoryByStudent(ctx context.Context, studentID string, fromKey string, toKey string) ([]domain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, class_date, student_id, class_id, previous_status, new_status, changed_by, created_at
		FROM attendance_history
		WHERE student_id = ? AND class_date >= ? AND class_date <= ?
		ORDER BY created_at DESC`,
		studentID, fromKey, toKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		var prev sql.NullString
		var createdStr string
		if err := rows.Scan(
			&entry.ID,
			&entry.ClassDate,
			&entry.StudentID,
			&entry.ClassID,
			&prev,
			&entry.NewStatus,
			&entry.ChangedBy,
			&createdStr,
		); err != nil {
			return nil, err
		}
		if prev.Valid {
			status := domain.Status(prev.String)
			entry.PreviousStatus = &status
		}
		entry.CreatedAt, err = parseStoredTime(createdStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		results = append(results, entry)
	}
	return results, rows.Err()
}

// SyncStatusChange applies one status change in a single transaction: the
// ledger cell value, the roster record and one history entry. The cell
// update touches only value and updated_at so annotations written earlier
// survive. Any failure rolls back all three writes.
// PRE: cell, rec and entry have been validated and agree on student/date
// POST: All three writes committed, or none
func (s *SQLiteStore) SyncStatusChange(ctx context.Context, cell domain.Cell, rec domain.RosterRecord, entry domain.HistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_cell (student_id, year_month, class_name, date_key, value, memo, homework, cell_color, updated_at)
		VALUES (?, ?, ?, ?, ?, '', 0, '', ?)
		ON CONFLICT(student_id, class_name, date_key) DO UPDATE SET
			value=excluded.value, updated_at=excluded.updated_at`,
		cell.StudentID, domain.MonthOf(cell.DateKey), cell.ClassName, cell.DateKey,
		nullableValue(cell.Value), cell.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ledger write failed: %w", err)
	}

	_, err = tx.ExecContext(ctx, upsertRosterSQL, rosterArgs(rec)...)
	if err != nil {
		return fmt.Errorf("roster write failed: %w", err)
	}

	_, err = tx.ExecContext(ctx, insertHistorySQL, historyArgs(entry)...)
	if err != nil {
		return fmt.Errorf("history write failed: %w", err)
	}

	return tx.Commit()
}

const upsertRosterSQL = `
	INSERT INTO roster_record (id, class_date, student_id, student_name, class_id, class_name, status, check_in_time, check_out_time, note, updated_by, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(class_date, student_id, class_id) DO UPDATE SET
		student_name=excluded.student_name, class_name=excluded.class_name,
		status=excluded.status, check_in_time=excluded.check_in_time,
		check_out_time=excluded.check_out_time, note=excluded.note,
		updated_by=excluded.updated_by, updated_at=excluded.updated_at`

func rosterArgs(rec domain.RosterRecord) []any {
	var checkIn, checkOut any
	if !rec.CheckInTime.IsZero() {
		checkIn = rec.CheckInTime.Format(time.RFC3339Nano)
	}
	if !rec.CheckOutTime.IsZero() {
		checkOut = rec.CheckOutTime.Format(time.RFC3339Nano)
	}
	return []any{
		rec.ID, rec.ClassDate, rec.StudentID, rec.StudentName, rec.ClassID, rec.ClassName,
		string(rec.Status), checkIn, checkOut, rec.Note, rec.UpdatedBy,
		rec.UpdatedAt.Format(time.RFC3339Nano),
	}
}

const insertHistorySQL = `
	INSERT INTO attendance_history (id, class_date, student_id, class_id, previous_status, new_status, changed_by, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func historyArgs(entry domain.HistoryEntry) []any {
	var prev any
	if entry.PreviousStatus != nil {
		prev = string(*entry.PreviousStatus)
	}
	return []any{
		entry.ID, entry.ClassDate, entry.StudentID, entry.ClassID,
		prev, string(entry.NewStatus), entry.ChangedBy,
		entry.CreatedAt.Format(time.RFC3339Nano),
	}
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCell(row rowScanner) (domain.Cell, error) {
	var cell domain.Cell
	var value sql.NullFloat64
	var homework int
	var updatedStr string
	err := row.Scan(
		&cell.StudentID,
		&cell.ClassName,
		&cell.DateKey,
		&value,
		&cell.Memo,
		&homework,
		&cell.CellColor,
		&updatedStr,
	)
	if err != nil {
		return domain.Cell{}, err
	}
	if value.Valid {
		v := value.Float64
		cell.Value = &v
	}
	cell.Homework = homework != 0
	cell.UpdatedAt, err = parseStoredTime(updatedStr)
	if err != nil {
		return domain.Cell{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return cell, nil
}

func scanCells(rows *sql.Rows) ([]domain.Cell, error) {
	var results []domain.Cell
	for rows.Next() {
		cell, err := scanCell(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, cell)
	}
	return results, rows.Err()
}

func scanRosterRow(row rowScanner) (domain.RosterRecord, error) {
	var rec domain.RosterRecord
	var status string
	var checkIn, checkOut sql.NullString
	var updatedStr string
	err := row.Scan(
		&rec.ID,
		&rec.ClassDate,
		&rec.StudentID,
		&rec.StudentName,
		&rec.ClassID,
		&rec.ClassName,
		&status,
		&checkIn,
		&checkOut,
		&rec.Note,
		&rec.UpdatedBy,
		&updatedStr,
	)
	if err != nil {
		return domain.RosterRecord{}, err
	}
	rec.Status = domain.Status(status)
	if checkIn.Valid {
		rec.CheckInTime, err = parseStoredTime(checkIn.String)
		if err != nil {
			return domain.RosterRecord{}, fmt.Errorf("failed to parse check_in_time: %w", err)
		}
	}
	if checkOut.Valid {
		rec.CheckOutTime, err = parseStoredTime(checkOut.String)
		if err != nil {
			return domain.RosterRecord{}, fmt.Errorf("failed to parse check_out_time: %w", err)
		}
	}
	rec.UpdatedAt, err = parseStoredTime(updatedStr)
	if err != nil {
		return domain.RosterRecord{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return rec, nil
}

func scanRosterRows(rows *sql.Rows) (domain.RosterRecord, error) {
	return scanRosterRow(rows)
}

func nullableValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseStoredTime(value string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", value)
}
