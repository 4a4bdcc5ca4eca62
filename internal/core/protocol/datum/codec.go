// If you are AI: This file implements the datum wire codec.
// Format: body length (4, big-endian) + timestamp (8, big-endian) + level (2, big-endian) + payload (N)

package datum

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Codec encodes and decodes datums. It is stateless and safe to share.
type Codec struct{}

// Encode appends the wire form of d to buf.
// Allocation: grows buf once for the whole frame.
func (Codec) Encode(d Datum, buf *bytes.Buffer) error {
	bodyLen := HeaderSize + len(d.Payload)
	if bodyLen > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, bodyLen)
	}

	buf.Grow(LengthSize + bodyLen)
	var header [LengthSize + HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(bodyLen))
	binary.BigEndian.PutUint64(header[4:12], uint64(d.Timestamp))
	binary.BigEndian.PutUint16(header[12:14], d.Level)
	buf.Write(header[:])
	buf.Write(d.Payload)
	return nil
}

// Decode consumes one frame from the front of buf.
// It returns ok=false without consuming anything when the frame is incomplete.
// Allocation: the payload is copied out, since buf is reused by the reader.
func (Codec) Decode(buf *bytes.Buffer) (Datum, bool, error) {
	b := buf.Bytes()
	if len(b) < LengthSize {
		return Datum{}, false, nil
	}

	bodyLen := binary.BigEndian.Uint32(b[:LengthSize])
	if bodyLen > MaxFrameSize {
		return Datum{}, false, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, bodyLen)
	}
	if bodyLen < HeaderSize {
		return Datum{}, false, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, bodyLen)
	}

	total := LengthSize + int(bodyLen)
	if len(b) < total {
		return Datum{}, false, nil
	}

	body := b[LengthSize:total]
	d := Datum{
		Timestamp: int64(binary.BigEndian.Uint64(body[0:8])),
		Level:     binary.BigEndian.Uint16(body[8:10]),
	}
	if n := len(body) - HeaderSize; n > 0 {
		d.Payload = make([]byte, n)
		copy(d.Payload, body[HeaderSize:])
	}
	buf.Next(total)
	return d, true, nil
}

// DecodeEOF decodes the last frame once the stream has ended.
// Leftover bytes that do not form a whole frame are an error.
func (c Codec) DecodeEOF(buf *bytes.Buffer) (Datum, bool, error) {
	d, ok, err := c.Decode(buf)
	if err != nil || ok {
		return d, ok, err
	}
	if buf.Len() > 0 {
		return Datum{}, false, fmt.Errorf("%w: %d bytes left", ErrTruncated, buf.Len())
	}
	return Datum{}, false, nil
}
