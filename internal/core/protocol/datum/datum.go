// If you are AI: This file defines the datum, the unit the streaming services exchange,
// and its wire constants.

package datum

import (
	"errors"
	"time"
)

const (
	// LengthSize is the size of the frame length prefix.
	LengthSize = 4

	// HeaderSize is the fixed part of a frame body: timestamp (8) + level (2).
	HeaderSize = 10

	// MaxFrameSize bounds a frame body, so a corrupt prefix cannot make the
	// reader buffer without limit.
	MaxFrameSize = 16 * 1024 * 1024
)

var (
	// ErrFrameTooLarge is returned for a frame body above MaxFrameSize.
	ErrFrameTooLarge = errors.New("datum frame too large")

	// ErrFrameTooShort is returned for a length prefix below HeaderSize.
	ErrFrameTooShort = errors.New("datum frame shorter than its header")

	// ErrTruncated is returned when the stream ends inside a frame.
	ErrTruncated = errors.New("stream ended inside a datum frame")
)

// Datum is one timestamped payload.
// Timestamp is unix milliseconds at the sender; 0 means the sender did not stamp it.
type Datum struct {
	Timestamp int64
	Level     uint16
	Payload   []byte
}

// New creates a datum stamped with now.
func New(now time.Time, level int, payload []byte) Datum {
	return Datum{
		Timestamp: now.UnixMilli(),
		Level:     uint16(level),
		Payload:   payload,
	}
}

// Stamped reports whether the sender recorded a send time.
func (d Datum) Stamped() bool {
	return d.Timestamp != 0
}

// Latency returns the time since the datum was stamped, or false if it was not.
// Clock skew between hosts shows up here as-is; negative values are not clamped.
func (d Datum) Latency(now time.Time) (time.Duration, bool) {
	if !d.Stamped() {
		return 0, false
	}
	return now.Sub(time.UnixMilli(d.Timestamp)), true
}

// WireSize returns the number of bytes the datum occupies on the wire.
func (d Datum) WireSize() int {
	return LengthSize + HeaderSize + len(d.Payload)
}
