package frame

import (
	"encoding/binary"
	"fmt"
)

// Frame is a single protocol message: a type tag plus an optional payload.
// Control frames always have an empty payload.
type Frame struct {
	Type    Type
	Payload []byte
}

// New creates a data frame. The payload is not copied.
func New(t Type, payload []byte) Frame {
	return Frame{Type: t, Payload: payload}
}

// Encode returns the wire bytes for a data frame:
// [type, len & 0xFF, len >> 8, payload...].
func (f Frame) Encode() ([]byte, error) {
	if f.Type.IsControl() {
		return nil, ErrControlFrame
	}
	if len(f.Payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	buf := make([]byte, HeaderSize+len(f.Payload))
	buf[0] = byte(f.Type)
	binary.LittleEndian.PutUint16(buf[1:HeaderSize], uint16(len(f.Payload)))
	copy(buf[HeaderSize:], f.Payload)
	return buf, nil
}

// Size returns the number of bytes the frame occupies on the wire.
func (f Frame) Size() int {
	if f.Type.IsControl() {
		return 1
	}
	return HeaderSize + len(f.Payload)
}

// String returns a short description for logging.
func (f Frame) String() string {
	return fmt.Sprintf("%s[%d]", f.Type, len(f.Payload))
}

// Decoder reassembles frames from an append-only byte stream.
//
// Bytes are delivered in chunks that need not align with frame boundaries.
// Complete frames are emitted in arrival order; trailing partial bytes stay
// buffered until the next Write.
//
// A Decoder is not safe for concurrent use. It belongs to the notification
// handler of a single connection.
type Decoder struct {
	buf []byte
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Write appends chunk to the accumulation buffer and returns every frame that
// became complete. Returned payloads do not alias the chunk or the buffer.
func (d *Decoder) Write(chunk []byte) []Frame {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for len(d.buf) > 0 {
		t := Type(d.buf[0])

		if t.IsControl() {
			frames = append(frames, Frame{Type: t, Payload: []byte{}})
			d.buf = d.buf[1:]
			continue
		}

		if len(d.buf) < HeaderSize {
			break
		}
		size := int(binary.LittleEndian.Uint16(d.buf[1:HeaderSize]))
		if len(d.buf) < HeaderSize+size {
			break
		}

		payload := make([]byte, size)
		copy(payload, d.buf[HeaderSize:HeaderSize+size])
		frames = append(frames, Frame{Type: t, Payload: payload})
		d.buf = d.buf[HeaderSize+size:]
	}

	// Compact so the backing array does not grow without bound.
	if len(d.buf) == 0 {
		d.buf = nil
	} else if cap(d.buf) > 2*len(d.buf)+MaxPayloadSize {
		d.buf = append([]byte(nil), d.buf...)
	}

	return frames
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any buffered partial frame.
func (d *Decoder) Reset() {
	d.buf = nil
}
