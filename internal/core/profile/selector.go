// If you are AI: This file implements the index-only level selector behind a profile table.
// Selector holds ascending bandwidth thresholds and the currently selected level.

package profile

import (
	"fmt"
	"math"
	"sort"
)

// Selector picks a level from an ascending list of bandwidth thresholds.
// It performs no I/O and carries no payload.
// Lock expectations: none. A single control loop owns a selector.
type Selector struct {
	levels  []float64 // Ascending bandwidth thresholds, one per level
	current int       // Currently selected level, always in [0, len(levels))
}

// NewSelector creates a selector over the given thresholds, starting at level 0.
// The slice is copied. Thresholds must be non-empty, ascending and free of NaN.
func NewSelector(levels []float64) Selector {
	cp := make([]float64, len(levels))
	copy(cp, levels)
	return Selector{levels: cp}
}

// Current returns the currently selected level.
func (s *Selector) Current() int {
	return s.current
}

// Len returns the number of levels.
func (s *Selector) Len() int {
	return len(s.levels)
}

// Locate finds the level whose threshold matches bw, or the highest threshold below it.
// A bandwidth below the smallest threshold still returns level 0 instead of reporting
// that no level is feasible.
// NOTE: Callers that need to distinguish "below minimum" must compare against
// Threshold(0) themselves; Locate keeps returning 0 for compatibility.
// Panics on NaN, which cannot be ordered against the thresholds.
func (s *Selector) Locate(bw float64) int {
	if math.IsNaN(bw) {
		panic("profile: failed to compare bandwidth: NaN")
	}

	// Insertion point: count of thresholds strictly less than bw
	i := sort.Search(len(s.levels), func(i int) bool {
		v := s.levels[i]
		if math.IsNaN(v) {
			panic(fmt.Sprintf("profile: failed to compare bandwidth: NaN threshold at level %d", i))
		}
		return v >= bw
	})

	if i < len(s.levels) && s.levels[i] == bw {
		return i
	}
	if i == 0 {
		return 0
	}
	return i - 1
}

// Adjust moves the selector to the level that bw satisfies.
// Returns the new level and true if the level changed, or false if it did not.
func (s *Selector) Adjust(bw float64) (int, bool) {
	level := s.Locate(bw)
	if level == s.current {
		return s.current, false
	}
	s.current = level
	return level, true
}

// Advance moves to the next higher level.
// Returns false once the selector is already at the highest level.
func (s *Selector) Advance() (int, bool) {
	if s.IsMax() {
		return s.current, false
	}
	s.current++
	return s.current, true
}

// NextThreshold returns the bandwidth required by the next higher level.
// Returns false when already at the highest level.
func (s *Selector) NextThreshold() (float64, bool) {
	if s.IsMax() {
		return 0, false
	}
	return s.levels[s.current+1], true
}

// IsMax reports whether the highest level is selected.
func (s *Selector) IsMax() bool {
	return s.current >= len(s.levels)-1
}

// Threshold returns the bandwidth threshold of level i.
// Panics if i is out of range.
func (s *Selector) Threshold(i int) float64 {
	return s.levels[i]
}

// clone returns an independent copy of the selector, including its current level.
func (s *Selector) clone() Selector {
	c := NewSelector(s.levels)
	c.current = s.current
	return c
}
