package student

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"academy/internal/adapters/storage"
	domain "academy/internal/domain/student"
)

// SQLiteStore implements Store using SQLite. Enrollments live in their own
// table and are loaded with the student.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new student store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a student with all enrollments.
// PRE: id is non-empty
// POST: Returns the student or a wrapped sql.ErrNoRows if absent
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Student, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, school, grade, default_rate_item FROM student WHERE id = ?", id)

	var entity domain.Student
	err := row.Scan(&entity.ID, &entity.Name, &entity.School, &entity.Grade, &entity.DefaultRateItemName)
	if err == sql.ErrNoRows {
		return domain.Student{}, fmt.Errorf("student not found: %w", err)
	}
	if err != nil {
		return domain.Student{}, err
	}

	entity.Enrollments, err = s.loadEnrollments(ctx, id)
	if err != nil {
		return domain.Student{}, err
	}
	return entity, nil
}

// Save persists a student and replaces their enrollment rows in one
// transaction.
// PRE: s has been validated
// POST: Student and enrollments persisted together, or not at all
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Student) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO student (id, name, school, grade, default_rate_item)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, school=excluded.school, grade=excluded.grade,
			default_rate_item=excluded.default_rate_item`,
		entity.ID, entity.Name, entity.School, entity.Grade, entity.DefaultRateItemName)
	if err != nil {
		return err
	}

	// Enrollments are replaced wholesale; ordering in the table follows the
	// slice so the primary class stays first.
	if _, err := tx.ExecContext(ctx, "DELETE FROM enrollment WHERE student_id = ?", entity.ID); err != nil {
		return err
	}
	for _, e := range entity.Enrollments {
		slotsJSON, err := json.Marshal(e.Slots)
		if err != nil {
			return fmt.Errorf("failed to marshal slots: %w", err)
		}
		weekdaysJSON, err := json.Marshal(e.Weekdays)
		if err != nil {
			return fmt.Errorf("failed to marshal weekdays: %w", err)
		}
		var endDate any
		if !e.EndDate.IsZero() {
			endDate = e.EndDate.UTC().Format("2006-01-02")
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO enrollment (id, student_id, class_name, subject, slots_json, weekdays_json, start_date, end_date, rate_item)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), entity.ID, e.ClassName, e.Subject,
			string(slotsJSON), string(weekdaysJSON),
			e.StartDate.UTC().Format("2006-01-02"), endDate, e.RateItemName)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Delete removes a student and their enrollments.
// PRE: id is non-empty
// POST: Student and enrollment rows removed
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM enrollment WHERE student_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM student WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// List retrieves all students with their enrollments, ordered by name.
// POST: Returns all students; each carries its enrollments
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, school, grade, default_rate_item FROM student ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Student
	for rows.Next() {
		var entity domain.Student
		if err := rows.Scan(&entity.ID, &entity.Name, &entity.School, &entity.Grade, &entity.DefaultRateItemName); err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Enrollments, err = s.loadEnrollments(ctx, results[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *SQLiteStore) loadEnrollments(ctx context.Context, studentID string) ([]domain.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT class_name, subject, slots_json, weekdays_json, start_date, end_date, rate_item
		FROM enrollment WHERE student_id = ? ORDER BY rowid`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []domain.Enrollment
	for rows.Next() {
		var e domain.Enrollment
		var slotsJSON, weekdaysJSON, startStr string
		var endStr sql.NullString
		if err := rows.Scan(&e.ClassName, &e.Subject, &slotsJSON, &weekdaysJSON, &startStr, &endStr, &e.RateItemName); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(slotsJSON), &e.Slots); err != nil {
			return nil, fmt.Errorf("failed to unmarshal slots: %w", err)
		}
		if err := json.Unmarshal([]byte(weekdaysJSON), &e.Weekdays); err != nil {
			return nil, fmt.Errorf("failed to unmarshal weekdays: %w", err)
		}
		e.StartDate, err = time.ParseInLocation("2006-01-02", startStr, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("failed to parse start_date: %w", err)
		}
		if endStr.Valid {
			e.EndDate, err = time.ParseInLocation("2006-01-02", endStr.String, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("failed to parse end_date: %w", err)
			}
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}
