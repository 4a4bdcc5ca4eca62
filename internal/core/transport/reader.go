// If you are AI: This file implements the pull-based frame reader.
// A three-state machine turns transport reads into decoded frames and guarantees
// that, once the stream has ended, it only ever reports io.EOF.

package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"

	"go.uber.org/zap"
)

// ReadCapacity is the initial receive buffer allocation.
const ReadCapacity = 8 * 1024

// readReserve is the free space ensured before each transport read.
// Any non-zero reserve makes a zero-byte read mean end of stream.
const readReserve = 4 * 1024

// maxEmptyReads bounds consecutive (0, nil) reads before giving up.
const maxEmptyReads = 100

type readState uint8

const (
	stateNeedMoreBytes readState = iota
	stateReadable
	stateAtEndOfStream
)

// String returns a readable name for logs.
func (s readState) String() string {
	switch s {
	case stateNeedMoreBytes:
		return "need-more-bytes"
	case stateReadable:
		return "readable"
	case stateAtEndOfStream:
		return "end-of-stream"
	default:
		return "unknown"
	}
}

// FrameReader decodes frames from a transport on demand.
// Lock expectations: one goroutine drives a reader.
type FrameReader[T any] struct {
	r      io.Reader
	dec    Decoder[T]
	buf    bytes.Buffer
	state  readState
	logger *zap.Logger
}

// NewFrameReader creates a reader in the need-more-bytes state.
func NewFrameReader[T any](r io.Reader, dec Decoder[T], logger *zap.Logger) *FrameReader[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	fr := &FrameReader[T]{
		r:      r,
		dec:    dec,
		state:  stateNeedMoreBytes,
		logger: logger.With(zap.String("component", "frame_reader")),
	}
	fr.buf.Grow(ReadCapacity)
	return fr
}

// Buffered returns the number of received bytes not yet decoded.
func (fr *FrameReader[T]) Buffered() int {
	return fr.buf.Len()
}

// Next returns the next frame.
// It returns io.EOF once the stream has ended and every frame has been yielded,
// and keeps returning io.EOF after that. An error matching ErrNotReady is
// retryable; any other error ends the stream for the caller.
func (fr *FrameReader[T]) Next() (T, error) {
	var zero T
	for {
		switch fr.state {
		case stateReadable:
			item, ok, err := fr.dec.Decode(&fr.buf)
			if err != nil {
				return zero, fmt.Errorf("decode frame: %w", err)
			}
			if ok {
				return item, nil
			}
			fr.state = stateNeedMoreBytes

		case stateNeedMoreBytes:
			if err := fr.fill(); err != nil {
				return zero, err
			}

		case stateAtEndOfStream:
			if fr.buf.Len() == 0 {
				return zero, io.EOF
			}
			item, ok, err := fr.dec.DecodeEOF(&fr.buf)
			// Whatever DecodeEOF left is unusable; later calls see an empty buffer
			fr.buf.Reset()
			if err != nil {
				return zero, fmt.Errorf("decode final frame: %w", err)
			}
			if ok {
				return item, nil
			}
			return zero, io.EOF

		default:
			return zero, fmt.Errorf("frame reader in state %s", fr.state)
		}
	}
}

// fill performs one transport read and moves the state machine accordingly.
func (fr *FrameReader[T]) fill() error {
	for empty := 0; ; empty++ {
		fr.buf.Grow(readReserve)
		space := fr.buf.AvailableBuffer()
		space = space[:cap(space)]

		n, err := fr.r.Read(space)
		if n > 0 {
			// An error alongside data is reported again by the next read
			fr.buf.Write(space[:n])
			fr.state = stateReadable
			return nil
		}

		switch {
		case err == nil:
			if empty >= maxEmptyReads {
				return io.ErrNoProgress
			}
			continue
		case errors.Is(err, io.EOF):
			fr.logger.Debug("end of stream", zap.Int("buffered", fr.buf.Len()))
			fr.state = stateAtEndOfStream
			return nil
		case IsNotReady(err):
			if errors.Is(err, ErrNotReady) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrNotReady, err)
		default:
			return fmt.Errorf("read frame: %w", err)
		}
	}
}

// All returns the remaining frames as a sequence.
// The sequence ends at end of stream; a failed read is yielded once and ends it,
// so callers that want to retry ErrNotReady should use Next instead.
// It is not restartable: frames consumed by one range are gone.
func (fr *FrameReader[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, err := fr.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(item, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the buffer and closes the transport when it is closable.
// The reader reports io.EOF afterwards.
func (fr *FrameReader[T]) Close() error {
	fr.buf = bytes.Buffer{}
	fr.state = stateAtEndOfStream
	return closeIfCloser(fr.r)
}
