// If you are AI: This file implements the shared throughput counter.
// The write path is the only writer; samplers on any goroutine read it.

package transport

import (
	"sync/atomic"
)

// Counter is a cumulative count of bytes delivered to a transport.
// It only grows; there is no reset. It wraps at 2^64 like any uint64.
// Lock expectations: single writer (the sink's write path), any number of readers.
// NOTE: sync/atomic operations are sequentially consistent. A relaxed add would
// be enough because the counter publishes no other memory, but Go offers no
// weaker ordering, and the cost is one uncontended atomic per write.
type Counter struct {
	bytes atomic.Uint64
}

// NewCounter creates a counter starting at zero.
func NewCounter() *Counter {
	return &Counter{}
}

// Add records n delivered bytes.
func (c *Counter) Add(n int) {
	if n <= 0 {
		return
	}
	c.bytes.Add(uint64(n))
}

// Load returns the total bytes delivered so far.
func (c *Counter) Load() uint64 {
	return c.bytes.Load()
}
