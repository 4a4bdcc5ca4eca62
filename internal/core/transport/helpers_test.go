package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

var errBlobTruncated = errors.New("truncated blob")

// blobCodec frames byte slices with a 2-byte big-endian length.
type blobCodec struct{}

func (blobCodec) Encode(item []byte, buf *bytes.Buffer) error {
	if len(item) > 0xFFFF {
		return errors.New("blob too large")
	}
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(item)))
	buf.Write(n[:])
	buf.Write(item)
	return nil
}

func (blobCodec) Decode(buf *bytes.Buffer) ([]byte, bool, error) {
	b := buf.Bytes()
	if len(b) < 2 {
		return nil, false, nil
	}
	n := int(binary.BigEndian.Uint16(b))
	if len(b) < 2+n {
		return nil, false, nil
	}
	item := make([]byte, n)
	copy(item, b[2:2+n])
	buf.Next(2 + n)
	return item, true, nil
}

func (c blobCodec) DecodeEOF(buf *bytes.Buffer) ([]byte, bool, error) {
	item, ok, err := c.Decode(buf)
	if err != nil || ok {
		return item, ok, err
	}
	if buf.Len() > 0 {
		return nil, false, errBlobTruncated
	}
	return nil, false, nil
}

// blob returns a payload that encodes to exactly size bytes.
func blob(size int) []byte {
	return bytes.Repeat([]byte{'x'}, size-2)
}

// recordingWriter accepts up to limit bytes in total (unlimited when limit < 0)
// and then reports ErrNotReady.
type recordingWriter struct {
	bytes.Buffer
	writes  int
	flushes int
	limit   int
	closed  bool
}

func newRecordingWriter(limit int) *recordingWriter {
	return &recordingWriter{limit: limit}
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.limit < 0 {
		return w.Buffer.Write(p)
	}
	room := w.limit - w.Buffer.Len()
	if room <= 0 {
		return 0, ErrNotReady
	}
	if len(p) > room {
		n, _ := w.Buffer.Write(p[:room])
		return n, ErrNotReady
	}
	return w.Buffer.Write(p)
}

func (w *recordingWriter) Flush() error {
	w.flushes++
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

// zeroWriter accepts nothing and reports no error.
type zeroWriter struct{}

func (zeroWriter) Write([]byte) (int, error) { return 0, nil }

// scriptedReader replays a list of read results.
type scriptedReader struct {
	steps  []readStep
	closed bool
}

type readStep struct {
	data []byte
	err  error
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.steps) == 0 {
		return 0, io.EOF
	}
	step := r.steps[0]
	n := copy(p, step.data)
	if n < len(step.data) {
		r.steps[0].data = step.data[n:]
		return n, nil
	}
	r.steps = r.steps[1:]
	return n, step.err
}

func (r *scriptedReader) Close() error {
	r.closed = true
	return nil
}

// encodeAll frames items with blobCodec.
func encodeAll(items ...[]byte) []byte {
	var buf bytes.Buffer
	for _, item := range items {
		_ = blobCodec{}.Encode(item, &buf)
	}
	return buf.Bytes()
}
