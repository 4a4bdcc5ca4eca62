// If you are AI: This file contains unit and property tests for the level selector.

package profile

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSelectorLocate(t *testing.T) {
	s := NewSelector([]float64{1.0, 2.0, 3.0, 4.0})

	tests := []struct {
		name string
		bw   float64
		want int
	}{
		{"exact first", 1.0, 0},
		{"exact middle", 3.0, 2},
		{"exact last", 4.0, 3},
		{"between", 2.5, 1},
		{"above max", 100.0, 3},
		{"below min", 0.5, 0},
		{"negative", -1.0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Locate(tt.bw))
		})
	}
}

func TestSelectorLocateDuplicateThresholds(t *testing.T) {
	s := NewSelector([]float64{1.0, 2.0, 2.0, 3.0})

	// Binary search lands on the first of the equal thresholds
	assert.Equal(t, 1, s.Locate(2.0))
	assert.Equal(t, 2, s.Locate(2.5))
}

func TestSelectorAdjust(t *testing.T) {
	s := NewSelector([]float64{1.0, 2.0, 3.0, 4.0})

	level, changed := s.Adjust(4.0)
	require.True(t, changed)
	assert.Equal(t, 3, level)

	_, changed = s.Adjust(4.0)
	assert.False(t, changed, "repeat adjust with the same bandwidth must report no change")

	level, changed = s.Adjust(1.5)
	require.True(t, changed)
	assert.Equal(t, 0, level)
	assert.Equal(t, 0, s.Current())
}

func TestSelectorAdvance(t *testing.T) {
	s := NewSelector([]float64{10, 20, 30})

	for want := 1; want < 3; want++ {
		level, ok := s.Advance()
		require.True(t, ok)
		assert.Equal(t, want, level)
	}
	assert.True(t, s.IsMax())

	for i := 0; i < 3; i++ {
		_, ok := s.Advance()
		assert.False(t, ok, "advance at max must keep reporting no change")
	}
	assert.Equal(t, 2, s.Current())
}

func TestSelectorNextThreshold(t *testing.T) {
	s := NewSelector([]float64{10, 20, 30})

	next, ok := s.NextThreshold()
	require.True(t, ok)
	assert.Equal(t, 20.0, next)

	s.Adjust(30)
	_, ok = s.NextThreshold()
	assert.False(t, ok)
}

func TestSelectorSingleLevel(t *testing.T) {
	s := NewSelector([]float64{5})

	assert.True(t, s.IsMax())
	_, changed := s.Adjust(1.5)
	assert.False(t, changed)
	_, changed = s.Adjust(50)
	assert.False(t, changed)
	_, ok := s.Advance()
	assert.False(t, ok)
}

func TestSelectorNaNPanics(t *testing.T) {
	s := NewSelector([]float64{1, 2})
	assert.Panics(t, func() { s.Locate(math.NaN()) })

	bad := NewSelector([]float64{1, math.NaN(), 3})
	assert.Panics(t, func() { bad.Locate(2) })
}

func TestSelectorCopiesLevels(t *testing.T) {
	levels := []float64{1, 2, 3}
	s := NewSelector(levels)
	levels[0] = 100

	assert.Equal(t, 1.0, s.Threshold(0))
}

// ascendingLevels draws a non-empty ascending threshold list without duplicates.
func ascendingLevels(rt *rapid.T) []float64 {
	raw := rapid.SliceOfNDistinct(rapid.IntRange(0, 1_000_000), 1, 64, rapid.ID[int]).Draw(rt, "levels")
	sort.Ints(raw)
	levels := make([]float64, len(raw))
	for i, v := range raw {
		levels[i] = float64(v)
	}
	return levels
}

func TestProperty_LocateExactMatch(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		levels := ascendingLevels(rt)
		s := NewSelector(levels)
		i := rapid.IntRange(0, len(levels)-1).Draw(rt, "index")

		assert.Equal(rt, i, s.Locate(levels[i]))
	})
}

func TestProperty_LocateBetween(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		levels := ascendingLevels(rt)
		if len(levels) < 2 {
			rt.Skip("need two levels")
		}
		s := NewSelector(levels)
		i := rapid.IntRange(0, len(levels)-2).Draw(rt, "index")
		bw := levels[i] + (levels[i+1]-levels[i])/2

		if bw > levels[i] && bw < levels[i+1] {
			assert.Equal(rt, i, s.Locate(bw))
		}
	})
}

func TestProperty_LocateBelowMinimum(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		levels := ascendingLevels(rt)
		s := NewSelector(levels)
		below := rapid.Float64Range(1, 1e6).Draw(rt, "delta")

		assert.Equal(rt, 0, s.Locate(levels[0]-below))
	})
}

func TestProperty_AdvanceMonotone(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		levels := ascendingLevels(rt)
		s := NewSelector(levels)
		steps := rapid.IntRange(0, 2*len(levels)).Draw(rt, "steps")

		prev := s.Current()
		for i := 0; i < steps; i++ {
			level, ok := s.Advance()
			if ok {
				require.Equal(rt, prev+1, level)
				prev = level
			} else {
				require.Equal(rt, len(levels)-1, s.Current())
			}
		}
		_, ok := s.Advance()
		if s.IsMax() {
			assert.False(rt, ok)
		}
	})
}

func TestProperty_AdjustIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		levels := ascendingLevels(rt)
		s := NewSelector(levels)
		s.Adjust(rapid.Float64Range(-10, 1e6+10).Draw(rt, "start"))
		bw := rapid.Float64Range(-10, 1e6+10).Draw(rt, "bw")

		before := s.Current()
		level, changed := s.Adjust(bw)
		assert.Equal(rt, before != s.Locate(bw), changed)
		assert.Equal(rt, s.Locate(bw), level)

		_, again := s.Adjust(bw)
		assert.False(rt, again)
	})
}
