package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"academy/internal/domain/attendance"
)

// AnnotationStore is the store surface annotation writes need.
type AnnotationStore interface {
	GetCell(ctx context.Context, key attendance.CellKey) (attendance.Cell, error)
	SaveAnnotations(ctx context.Context, cell attendance.Cell) error
}

// SetCellAnnotationInput carries one annotation write. Memo, homework and
// cell color are three independent mutation kinds; only non-nil fields are
// applied, the rest keep their stored value.
type SetCellAnnotationInput struct {
	StudentID string
	ClassName string
	DateKey   string // YYYY-MM-DD

	Memo      *string
	Homework  *bool
	CellColor *string
}

// SetCellAnnotationDeps holds dependencies for SetCellAnnotation.
type SetCellAnnotationDeps struct {
	Store AnnotationStore
	Now   func() time.Time // defaults to time.Now
}

// ExecuteSetCellAnnotation writes annotation facets on a ledger cell.
// Annotations have no cross-invariant with the attendance value: they may
// exist on cells with no status, and a later status change must not clobber
// them.
// PRE: the cell key is valid; at least one facet is non-nil
// POST: The named facets are persisted; the value and unnamed facets are
// untouched
func ExecuteSetCellAnnotation(ctx context.Context, input SetCellAnnotationInput, deps SetCellAnnotationDeps) error {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	key := attendance.CellKey{StudentID: input.StudentID, ClassName: input.ClassName, DateKey: input.DateKey}
	if err := key.Validate(); err != nil {
		return err
	}
	if input.Memo == nil && input.Homework == nil && input.CellColor == nil {
		return errors.New("no annotation fields to apply")
	}

	cell, err := deps.Store.GetCell(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		cell = attendance.Cell{StudentID: input.StudentID, ClassName: input.ClassName, DateKey: input.DateKey}
	default:
		return fmt.Errorf("cell lookup failed: %w", err)
	}

	if input.Memo != nil {
		cell.Memo = *input.Memo
	}
	if input.Homework != nil {
		cell.Homework = *input.Homework
	}
	if input.CellColor != nil {
		cell.CellColor = *input.CellColor
	}
	cell.UpdatedAt = now()

	return deps.Store.SaveAnnotations(ctx, cell)
}
