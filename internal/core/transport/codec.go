// If you are AI: This file defines the codec capability the transport depends on, and the
// transport readiness errors. The transport never interprets frame bytes itself.

package transport

import (
	"bytes"
	"errors"
	"io"
	"net"
)

var (
	// ErrNotReady signals that the transport cannot make progress right now.
	// It is retryable: buffered bytes are kept and the call can be repeated.
	ErrNotReady = errors.New("transport not ready")

	// ErrWriteZero signals a write that accepted no bytes while data was pending.
	// The peer is gone or the pipe is broken; the connection must be torn down.
	ErrWriteZero = errors.New("failed to write frame to transport")
)

// Encoder appends the wire form of one item to buf.
type Encoder[T any] interface {
	Encode(item T, buf *bytes.Buffer) error
}

// Decoder consumes frames from the front of buf.
// Decode returns ok=false, without consuming, when buf does not hold a whole frame.
// DecodeEOF is called once the stream has ended; it may yield one last frame,
// return ok=false when nothing is left, or fail on a truncated frame.
type Decoder[T any] interface {
	Decode(buf *bytes.Buffer) (item T, ok bool, err error)
	DecodeEOF(buf *bytes.Buffer) (item T, ok bool, err error)
}

// Codec is an Encoder and Decoder for the same item type.
type Codec[T any] interface {
	Encoder[T]
	Decoder[T]
}

// flusher is implemented by transports that keep their own write buffer.
type flusher interface {
	Flush() error
}

// IsNotReady reports whether err means "try again later" rather than failure.
// Besides ErrNotReady it accepts timeouts, which is how a net.Conn with a
// deadline reports that it would have blocked.
func IsNotReady(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotReady) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// closeIfCloser closes v when it implements io.Closer.
func closeIfCloser(v any) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
