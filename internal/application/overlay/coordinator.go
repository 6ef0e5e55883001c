// Package overlay holds the optimistic update coordinator for the
// attendance grid. Mutations stage their new value here before the write is
// issued; grid reads merge staged entries over committed storage so the
// editor sees the change immediately. A commit clears the staged entry (the
// stored value now agrees with it); a rollback clears it and the caller
// surfaces the error. Staged entries are never retried.
package overlay

import (
	"log/slog"
	"sync"
	"time"

	"academy/internal/domain/attendance"
)

// Kind names one of the four independently staged cell facets.
type Kind int

const (
	KindValue Kind = iota
	KindMemo
	KindHomework
	KindColor
)

// DefaultStaleTimeout is how long an in-flight mutation blocks duplicates
// for the same roster id. A transaction that has not settled by then is
// treated as hung and a new attempt may proceed.
const DefaultStaleTimeout = 90 * time.Second

// Coordinator stages optimistic cell updates and serializes mutations per
// roster-record id. Different cell keys and different ids proceed
// independently; the only shared state is the maps behind one mutex.
type Coordinator struct {
	mu sync.Mutex

	staged   map[Kind]map[attendance.CellKey]any
	inFlight map[string]time.Time

	staleTimeout time.Duration
	now          func() time.Time
}

// New creates a coordinator with the default staleness timeout.
func New() *Coordinator {
	return NewWithTimeout(DefaultStaleTimeout)
}

// NewWithTimeout creates a coordinator with an explicit staleness timeout.
// PRE: timeout > 0
func NewWithTimeout(timeout time.Duration) *Coordinator {
	return &Coordinator{
		staged: map[Kind]map[attendance.CellKey]any{
			KindValue:    {},
			KindMemo:     {},
			KindHomework: {},
			KindColor:    {},
		},
		inFlight:     make(map[string]time.Time),
		staleTimeout: timeout,
		now:          time.Now,
	}
}

// Begin marks a mutation for the given roster id as in flight. Returns
// false when a mutation for the same id is already pending; the caller must
// drop the request (never queue it). A pending entry older than the
// staleness timeout no longer blocks.
// PRE: id is non-empty
// POST: Returns true and records the start time, or false and logs a warning
func (c *Coordinator) Begin(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if started, ok := c.inFlight[id]; ok {
		if c.now().Sub(started) < c.staleTimeout {
			slog.Warn("mutation_dropped_in_flight", "id", id, "started", started)
			return false
		}
		slog.Warn("mutation_reclaimed_stale", "id", id, "started", started)
	}
	c.inFlight[id] = c.now()
	return true
}

// End clears the in-flight marker for a roster id. Called after the
// mutation settles, on both the commit and the rollback path.
// PRE: Begin(id) previously returned true
func (c *Coordinator) End(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, id)
}

// Stage records an optimistic value for one cell facet.
// POST: Reads of (kind, key) return value until Commit or Rollback
func (c *Coordinator) Stage(kind Kind, key attendance.CellKey, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staged[kind][key] = value
}

// Commit clears a staged entry after its write succeeded.
// POST: (kind, key) no longer shadows the stored value
func (c *Coordinator) Commit(kind Kind, key attendance.CellKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.staged[kind], key)
}

// Rollback discards a staged entry after its write failed. The caller
// surfaces the error to the user; the coordinator never retries.
// POST: (kind, key) no longer shadows the stored value
func (c *Coordinator) Rollback(kind Kind, key attendance.CellKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.staged[kind], key)
}

// Get returns the staged value for one cell facet, if any.
// INVARIANT: Coordinator state is not mutated
func (c *Coordinator) Get(kind Kind, key attendance.CellKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.staged[kind][key]
	return v, ok
}

// Snapshot returns a copy of all staged entries for one facet. Grid reads
// merge this over the committed cells.
// INVARIANT: Coordinator state is not mutated; the copy is the caller's
func (c *Coordinator) Snapshot(kind Kind) map[attendance.CellKey]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[attendance.CellKey]any, len(c.staged[kind]))
	for k, v := range c.staged[kind] {
		out[k] = v
	}
	return out
}

// MergeCell returns the cell with any staged facets applied over it.
// INVARIANT: the input cell is not mutated; a copy is returned
func (c *Coordinator) MergeCell(cell attendance.Cell) attendance.Cell {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cell.Key()
	if v, ok := c.staged[KindValue][key]; ok {
		if f, ok := v.(*float64); ok {
			cell.Value = f
		}
	}
	if v, ok := c.staged[KindMemo][key]; ok {
		if s, ok := v.(string); ok {
			cell.Memo = s
		}
	}
	if v, ok := c.staged[KindHomework][key]; ok {
		if b, ok := v.(bool); ok {
			cell.Homework = b
		}
	}
	if v, ok := c.staged[KindColor][key]; ok {
		if s, ok := v.(string); ok {
			cell.CellColor = s
		}
	}
	return cell
}
