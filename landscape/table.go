// Package landscape holds the decision table produced by backward induction:
// for every (timestep, state) pair, the optimal fitness and the chosen patch.
package landscape

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/forage/patch"
)

var (
	// ErrNotFound is returned for lookups outside the living state space.
	ErrNotFound = errors.New("landscape: no record for key")
	// ErrIncomplete is returned when a table is finished with missing rows.
	ErrIncomplete = errors.New("landscape: table incomplete")
	// ErrDuplicate is returned when a row is added twice.
	ErrDuplicate = errors.New("landscape: duplicate record")
)

// Record is one row of the decision table.
type Record struct {
	T           int     `csv:"t"`
	State       int     `csv:"state"`
	FitnessNow  float64 `csv:"F0"`    // F(x, t)
	FitnessNext float64 `csv:"F1"`    // F(x, t+1)
	ChosenPatch int     `csv:"patch"` // 0-based registry index
}

// Table is an immutable decision table. Rows are stored in chronological
// order: t ascending, then state ascending. Lookups go through Get.
type Table struct {
	bounds  patch.Bounds
	records []Record
}

// index maps (t, state) to a row position. Caller checks bounds.
func index(b patch.Bounds, t, state int) int {
	return t*b.NumStates() + (state - b.XCrit - 1)
}

// Bounds returns the state space the table covers.
func (tb *Table) Bounds() patch.Bounds {
	return tb.bounds
}

// Len returns the number of rows.
func (tb *Table) Len() int {
	return len(tb.records)
}

// Get returns the record for (t, state).
func (tb *Table) Get(t, state int) (Record, error) {
	if !tb.bounds.Contains(t, state) {
		return Record{}, fmt.Errorf("%w: t=%d state=%d", ErrNotFound, t, state)
	}
	return tb.records[index(tb.bounds, t, state)], nil
}

// Records returns a copy of all rows in chronological order.
func (tb *Table) Records() []Record {
	out := make([]Record, len(tb.records))
	copy(out, tb.records)
	return out
}

// Each calls fn for every row in chronological order until fn returns false.
func (tb *Table) Each(fn func(Record) bool) {
	for _, r := range tb.records {
		if !fn(r) {
			return
		}
	}
}

// Builder assembles a Table from rows arriving in any order.
type Builder struct {
	bounds  patch.Bounds
	records []Record
	filled  []bool
	count   int
}

// NewBuilder creates a builder for the given bounds.
func NewBuilder(b patch.Bounds) (*Builder, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	n := b.NumRecords()
	return &Builder{
		bounds:  b,
		records: make([]Record, n),
		filled:  make([]bool, n),
	}, nil
}

// Add places a row at its (t, state) slot.
func (bd *Builder) Add(r Record) error {
	if !bd.bounds.Contains(r.T, r.State) {
		return fmt.Errorf("%w: t=%d state=%d", ErrNotFound, r.T, r.State)
	}
	i := index(bd.bounds, r.T, r.State)
	if bd.filled[i] {
		return fmt.Errorf("%w: t=%d state=%d", ErrDuplicate, r.T, r.State)
	}
	bd.records[i] = r
	bd.filled[i] = true
	bd.count++
	return nil
}

// Finish returns the table. Every (t, state) slot must have been filled.
func (bd *Builder) Finish() (*Table, error) {
	if bd.count != len(bd.records) {
		return nil, fmt.Errorf("%w: %d of %d rows", ErrIncomplete, bd.count, len(bd.records))
	}
	tb := &Table{bounds: bd.bounds, records: bd.records}
	bd.records = nil
	bd.filled = nil
	return tb, nil
}

// FromRecords builds a table from a complete set of rows.
func FromRecords(b patch.Bounds, rows []Record) (*Table, error) {
	bd, err := NewBuilder(b)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := bd.Add(r); err != nil {
			return nil, err
		}
	}
	return bd.Finish()
}
