// If you are AI: This file wraps the process profile table for concurrent use.
// The API goroutines and push tasks share it; the table itself is single-goroutine.

package push

import (
	"sync"

	"bwstream/internal/core/profile"
)

// Record is a profile level carrying a stream configuration.
type Record = profile.Record[profile.StreamConfig]

// ProfileInfo is a snapshot of the shared profile.
type ProfileInfo struct {
	Records       []Record `json:"records"`
	Level         int      `json:"level"`
	Current       Record   `json:"current"`
	NextThreshold *float64 `json:"next_threshold,omitempty"`
	IsMax         bool     `json:"is_max"`
}

// Profile guards a profile table with a mutex.
// Lock expectations: every method takes the lock; none blocks on I/O while holding it.
type Profile struct {
	mu    sync.Mutex
	table *profile.Table[profile.StreamConfig]
}

// NewProfile wraps table. The caller must not use table directly afterwards.
func NewProfile(table *profile.Table[profile.StreamConfig]) *Profile {
	return &Profile{table: table}
}

// AdjustTo selects the level for a declared bandwidth.
func (p *Profile) AdjustTo(bandwidth float64) (Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.table.AdjustTo(bandwidth)
}

// Advance moves to the next level unless already at the top.
func (p *Profile) Advance() (Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.table.Advance()
}

// Snapshot returns the records and the current selection.
func (p *Profile) Snapshot() ProfileInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	level := p.table.CurrentIndex()
	info := ProfileInfo{
		Records: p.table.Records(),
		Level:   level,
		IsMax:   p.table.IsMax(),
	}
	if p.table.Len() > 0 {
		info.Current = p.table.Record(level)
	}
	if next, ok := p.table.NextThreshold(); ok {
		info.NextThreshold = &next
	}
	return info
}

// fork returns a copy of the records and an independent selector positioned
// at the current level, for a push task to drive on its own.
func (p *Profile) fork() ([]Record, profile.Selector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.table.Records(), p.table.Simplify()
}
