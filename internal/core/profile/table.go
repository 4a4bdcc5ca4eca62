// If you are AI: This file implements the profile table: thresholds paired with configurations.
// Table wraps Selector and turns level changes into typed configuration records.

package profile

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrEmptyTable is returned when a table with no records is queried.
var ErrEmptyTable = errors.New("no configuration in profile")

// Record is one ranked rule: the bandwidth a configuration needs, and the configuration.
// Accuracy is advisory metadata carried from the profile file; no selection logic reads it.
type Record[C any] struct {
	Bandwidth float64 `json:"bandwidth"`
	Config    C       `json:"config"`
	Accuracy  float64 `json:"accuracy"`
}

// ChangeFunc observes level changes made by AdjustTo or Advance.
type ChangeFunc[C any] func(level int, rec Record[C])

// Table is a ranked list of records searched by bandwidth.
// Records are expected in ascending bandwidth order; the table does not sort them.
// Lock expectations: not safe for concurrent mutation. Callers sharing a table
// across goroutines must serialize AdjustTo and Advance themselves.
type Table[C any] struct {
	selector Selector
	records  []Record[C]
	onChange ChangeFunc[C]
	logger   *zap.Logger
}

// NewTable creates a table from records, starting at level 0.
// The records slice is copied.
func NewTable[C any](records []Record[C], logger *zap.Logger) *Table[C] {
	if logger == nil {
		logger = zap.NewNop()
	}

	recs := make([]Record[C], len(records))
	copy(recs, records)

	levels := make([]float64, len(recs))
	for i, r := range recs {
		levels[i] = r.Bandwidth
	}

	return &Table[C]{
		selector: NewSelector(levels),
		records:  recs,
		logger:   logger.With(zap.String("component", "profile")),
	}
}

// OnChange registers a callback invoked after every level change.
func (t *Table[C]) OnChange(fn ChangeFunc[C]) {
	t.onChange = fn
}

// Len returns the number of records.
func (t *Table[C]) Len() int {
	return len(t.records)
}

// Nth returns the configuration at level i.
// Panics if i is not a valid level.
func (t *Table[C]) Nth(i int) C {
	return t.records[i].Config
}

// Record returns the full record at level i.
// Panics if i is not a valid level.
func (t *Table[C]) Record(i int) Record[C] {
	return t.records[i]
}

// Initial returns the first (lowest) configuration.
func (t *Table[C]) Initial() (C, error) {
	if len(t.records) == 0 {
		var zero C
		return zero, ErrEmptyTable
	}
	return t.records[0].Config, nil
}

// Best returns the last (highest) configuration.
func (t *Table[C]) Best() (C, error) {
	if len(t.records) == 0 {
		var zero C
		return zero, ErrEmptyTable
	}
	return t.records[len(t.records)-1].Config, nil
}

// Current returns the configuration at the current level.
func (t *Table[C]) Current() C {
	return t.records[t.selector.Current()].Config
}

// CurrentIndex returns the current level.
func (t *Table[C]) CurrentIndex() int {
	return t.selector.Current()
}

// NextThreshold returns the bandwidth needed by the next level, false at the top.
func (t *Table[C]) NextThreshold() (float64, bool) {
	return t.selector.NextThreshold()
}

// IsMax reports whether the highest configuration is selected.
func (t *Table[C]) IsMax() bool {
	return t.selector.IsMax()
}

// AdjustTo selects the configuration that bw satisfies.
// Returns the new record and true on a level change, false otherwise.
func (t *Table[C]) AdjustTo(bw float64) (Record[C], bool) {
	level, changed := t.selector.Adjust(bw)
	if !changed {
		return Record[C]{}, false
	}
	return t.changed(level), true
}

// Advance moves to the next configuration.
// Returns false when the highest configuration is already selected.
func (t *Table[C]) Advance() (Record[C], bool) {
	level, changed := t.selector.Advance()
	if !changed {
		return Record[C]{}, false
	}
	return t.changed(level), true
}

// Records returns a copy of all records in level order.
func (t *Table[C]) Records() []Record[C] {
	out := make([]Record[C], len(t.records))
	copy(out, t.records)
	return out
}

// Simplify returns a payload-free copy of the selector, including its current level.
func (t *Table[C]) Simplify() Selector {
	return t.selector.clone()
}

// changed logs and publishes a level change and returns the new record.
func (t *Table[C]) changed(level int) Record[C] {
	rec := t.records[level]
	t.logger.Info("updating level",
		zap.Int("level", level),
		zap.Float64("bandwidth", rec.Bandwidth),
		zap.String("config", fmt.Sprintf("%+v", rec.Config)),
	)
	if t.onChange != nil {
		t.onChange(level, rec)
	}
	return rec
}
