// If you are AI: This file implements the backpressure-aware frame sink.
// Frames are encoded into one buffer and written to the transport in enqueue order;
// every delivered byte is added to the shared throughput counter.

package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

const (
	// Capacity is the initial send buffer allocation.
	Capacity = 16 * 1024

	// Boundary is the buffered byte count at which Enqueue flushes first and,
	// if the transport cannot take the bytes, rejects the frame.
	Boundary = Capacity
)

// writeDeadliner is implemented by net.Conn and lets Send bound a blocking write.
type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Sink buffers encoded frames and writes them to a transport.
// Lock expectations: one goroutine drives a sink. Only its Counter is shared.
// Allocation: a single buffer, reused once drained.
type Sink[T any] struct {
	w       io.Writer
	enc     Encoder[T]
	buf     bytes.Buffer
	counter *Counter
	logger  *zap.Logger
}

// NewSink creates a sink writing to w with a fresh counter.
func NewSink[T any](w io.Writer, enc Encoder[T], logger *zap.Logger) *Sink[T] {
	return NewSinkWithCounter(w, enc, NewCounter(), logger)
}

// NewSinkWithCounter creates a sink that adds delivered bytes to an existing counter.
func NewSinkWithCounter[T any](w io.Writer, enc Encoder[T], counter *Counter, logger *zap.Logger) *Sink[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sink[T]{
		w:       w,
		enc:     enc,
		counter: counter,
		logger:  logger.With(zap.String("component", "sink")),
	}
	s.buf.Grow(Capacity)
	return s
}

// Counter returns the throughput counter this sink updates.
func (s *Sink[T]) Counter() *Counter {
	return s.counter
}

// Buffered returns the number of encoded bytes not yet written.
func (s *Sink[T]) Buffered() int {
	return s.buf.Len()
}

// Enqueue encodes item into the send buffer.
// Once the buffer holds Boundary bytes it is flushed first; if it is still over the
// boundary afterwards (the transport was not ready), Enqueue returns false and does
// not take the item. That is flow control, not an error: keep the item and retry.
func (s *Sink[T]) Enqueue(item T) (bool, error) {
	if s.buf.Len() >= Boundary {
		if err := s.Flush(); err != nil && !IsNotReady(err) {
			return false, err
		}
		if s.buf.Len() >= Boundary {
			return false, nil
		}
	}

	if err := s.enc.Encode(item, &s.buf); err != nil {
		return false, fmt.Errorf("encode frame: %w", err)
	}
	return true, nil
}

// Flush writes buffered bytes until the buffer is empty, then flushes the transport
// if it buffers on its own.
// A transport that is not ready leaves the rest buffered and returns an error
// matching ErrNotReady. A write that accepts nothing returns ErrWriteZero.
func (s *Sink[T]) Flush() error {
	for s.buf.Len() > 0 {
		n, err := s.w.Write(s.buf.Bytes())
		if n > 0 {
			s.buf.Next(n)
			s.counter.Add(n)
			s.logger.Debug("complete sending bytes",
				zap.Int("size", n),
				zap.Int("remaining", s.buf.Len()),
			)
		}
		if err != nil {
			return s.writeErr(err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %w", ErrWriteZero, io.ErrShortWrite)
		}
	}

	if f, ok := s.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return s.writeErr(err)
		}
	}
	return nil
}

// writeErr classifies a transport error as retryable or fatal.
func (s *Sink[T]) writeErr(err error) error {
	if IsNotReady(err) {
		if errors.Is(err, ErrNotReady) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	return fmt.Errorf("write frame: %w", err)
}

// Send enqueues item, flushing as needed, until the sink accepts it.
// On a net.Conn-like transport, cancelling ctx interrupts a blocked write.
// A transport that reports ErrNotReady without blocking makes Send return that error.
func (s *Sink[T]) Send(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if d, ok := s.w.(writeDeadliner); ok {
		stop := context.AfterFunc(ctx, func() {
			// A deadline in the past wakes any blocked Write
			_ = d.SetWriteDeadline(time.Unix(1, 0))
		})
		defer stop()
	}

	for {
		accepted, err := s.Enqueue(item)
		if err != nil {
			return s.ctxErr(ctx, err)
		}
		if accepted {
			return nil
		}
		if err := s.Flush(); err != nil {
			return s.ctxErr(ctx, err)
		}
	}
}

// ctxErr prefers the context's error when the context ended the operation.
func (s *Sink[T]) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Close flushes what is buffered, releases the buffer and closes the transport
// when it is closable. The buffer is released even if the flush fails.
func (s *Sink[T]) Close() error {
	flushErr := s.Flush()
	if flushErr != nil {
		s.logger.Warn("dropping unflushed bytes on close",
			zap.Int("bytes", s.buf.Len()),
			zap.Error(flushErr),
		)
	}
	s.buf = bytes.Buffer{}
	return errors.Join(flushErr, closeIfCloser(s.w))
}
