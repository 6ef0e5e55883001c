package attendance

import (
	"context"

	domain "academy/internal/domain/attendance"
)

// Store persists the three attendance tables: the ledger (billing truth),
// the roster mirror (daily operational view) and the append-only history.
type Store interface {
	// Ledger cells
	GetCell(ctx context.Context, key domain.CellKey) (domain.Cell, error)
	SaveCell(ctx context.Context, cell domain.Cell) error
	SaveAnnotations(ctx context.Context, cell domain.Cell) error
	ListCellsByStudentMonth(ctx context.Context, studentID string, month string) ([]domain.Cell, error)
	ListCellsByStudentRange(ctx context.Context, studentID string, fromKey string, toKey string) ([]domain.Cell, error)

	// Roster records
	GetRosterRecord(ctx context.Context, classDate string, studentID string, classID string) (domain.RosterRecord, error)
	SaveRosterRecord(ctx context.Context, rec domain.RosterRecord) error
	ListRosterByDate(ctx context.Context, classDate string) ([]domain.RosterRecord, error)

	// History
	AppendHistory(ctx context.Context, entry domain.HistoryEntry) error
	ListHistoryByStudent(ctx context.Context, studentID string, fromKey string, toKey string) ([]domain.HistoryEntry, error)

	// SyncStatusChange applies one status change atomically: ledger cell
	// value, roster record and one history entry commit together or not
	// at all.
	SyncStatusChange(ctx context.Context, cell domain.Cell, rec domain.RosterRecord, entry domain.HistoryEntry) error
}
