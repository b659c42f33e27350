package frame

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustEncode(t *testing.T, f Frame) []byte {
	t.Helper()
	b, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode(%s): %v", f, err)
	}
	return b
}

// testStream returns a stream mixing data frames, control frames and events.
func testStream(t *testing.T) ([]byte, []Frame) {
	t.Helper()

	long := make([]byte, 300)
	for i := range long {
		long[i] = byte(i)
	}

	frames := []Frame{
		{Type: TypeHandshakeResponse, Payload: bytes.Repeat([]byte{0x11}, 21)},
		{Type: TypeEvent, Payload: []byte{0x01, 0x02}},
		{Type: TypeClientBlocked, Payload: []byte{}},
		{Type: TypeCommandAck, Payload: []byte{}},
		{Type: TypeHandshakeFinishedResponse, Payload: bytes.Repeat([]byte{0xF0}, 9)},
		{Type: TypeEncryptionError, Payload: []byte{}},
		{Type: TypeHandshakeExpired, Payload: []byte{}},
		{Type: TypeDeliverMessages, Payload: long},
	}

	var stream []byte
	for _, f := range frames {
		if f.Type.IsControl() {
			stream = append(stream, byte(f.Type))
			continue
		}
		stream = append(stream, mustEncode(t, f)...)
	}
	return stream, frames
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  []byte
	}{
		{
			name:  "empty payload",
			frame: Frame{Type: TypeStartHandshake},
			want:  []byte{0xA0, 0x00, 0x00},
		},
		{
			name:  "short payload",
			frame: Frame{Type: TypeCommand, Payload: []byte{0xDE, 0xAD}},
			want:  []byte{0xA4, 0x02, 0x00, 0xDE, 0xAD},
		},
		{
			name:  "length uses both bytes",
			frame: Frame{Type: TypeDialogServer, Payload: make([]byte, 0x0102)},
			want:  append([]byte{0xC0, 0x02, 0x01}, make([]byte, 0x0102)...),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustEncode(t, tt.frame)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = %x, want %x", got, tt.want)
			}
			if tt.frame.Size() != len(got) {
				t.Errorf("Size() = %d, want %d", tt.frame.Size(), len(got))
			}
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	if _, err := (Frame{Type: TypeClientBlocked}).Encode(); err != ErrControlFrame {
		t.Errorf("control frame: got %v, want ErrControlFrame", err)
	}
	if _, err := (Frame{Type: TypeCommand, Payload: make([]byte, MaxPayloadSize+1)}).Encode(); err != ErrPayloadTooLarge {
		t.Errorf("oversized payload: got %v, want ErrPayloadTooLarge", err)
	}
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	for _, n := range []int{0, 1, 16, 46, 57, 1000} {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(n + i)
		}
		in := Frame{Type: TypeCommand, Payload: payload}

		d := NewDecoder()
		out := d.Write(mustEncode(t, in))
		if diff := cmp.Diff([]Frame{in}, out, cmp.Comparer(bytes.Equal)); diff != "" {
			t.Errorf("len %d: roundtrip mismatch (-want +got):\n%s", n, diff)
		}
		if d.Buffered() != 0 {
			t.Errorf("len %d: Buffered() = %d, want 0", n, d.Buffered())
		}
	}
}

func TestDecoderControlFrames(t *testing.T) {
	d := NewDecoder()
	got := d.Write([]byte{0xFD, 0xFE, 0xFF})
	want := []Frame{
		{Type: TypeClientBlocked, Payload: []byte{}},
		{Type: TypeHandshakeExpired, Payload: []byte{}},
		{Type: TypeEncryptionError, Payload: []byte{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("control frames mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoderPartialFrames(t *testing.T) {
	d := NewDecoder()
	wire := mustEncode(t, Frame{Type: TypeCommandAck, Payload: []byte{0x00, 0x1E, 0x00}})

	// Incomplete header.
	if got := d.Write(wire[:2]); len(got) != 0 {
		t.Fatalf("incomplete header produced %d frames", len(got))
	}
	if d.Buffered() != 2 {
		t.Errorf("Buffered() = %d, want 2", d.Buffered())
	}

	// Header complete, payload incomplete.
	if got := d.Write(wire[2:4]); len(got) != 0 {
		t.Fatalf("incomplete payload produced %d frames", len(got))
	}

	// Completing chunk also carries the start of the next frame.
	got := d.Write(append(wire[4:], 0xA1))
	if len(got) != 1 || got[0].Type != TypeCommandAck {
		t.Fatalf("got %v, want one CommandAck", got)
	}
	if d.Buffered() != 1 {
		t.Errorf("Buffered() = %d, want 1 trailing byte", d.Buffered())
	}

	d.Reset()
	if d.Buffered() != 0 {
		t.Errorf("Buffered() after Reset = %d", d.Buffered())
	}
}

func TestDecoderPayloadDoesNotAlias(t *testing.T) {
	d := NewDecoder()
	chunk := []byte{0xA4, 0x02, 0x00, 0x01, 0x02}
	got := d.Write(chunk)
	chunk[3] = 0xFF
	if got[0].Payload[0] != 0x01 {
		t.Error("payload aliases the input chunk")
	}
}

func TestDecoderChunkingInvariance(t *testing.T) {
	stream, want := testStream(t)
	opts := cmp.Comparer(bytes.Equal)

	decodeChunks := func(chunks [][]byte) []Frame {
		d := NewDecoder()
		var out []Frame
		for _, c := range chunks {
			out = append(out, d.Write(c)...)
		}
		if d.Buffered() != 0 {
			t.Errorf("Buffered() = %d after full stream", d.Buffered())
		}
		return out
	}

	// Whole stream at once.
	if diff := cmp.Diff(want, decodeChunks([][]byte{stream}), opts); diff != "" {
		t.Fatalf("single chunk mismatch (-want +got):\n%s", diff)
	}

	// Every two-way split.
	for i := 0; i <= len(stream); i++ {
		got := decodeChunks([][]byte{stream[:i], stream[i:]})
		if diff := cmp.Diff(want, got, opts); diff != "" {
			t.Fatalf("split at %d mismatch (-want +got):\n%s", i, diff)
		}
	}

	// Byte by byte.
	var single [][]byte
	for i := range stream {
		single = append(single, stream[i:i+1])
	}
	if diff := cmp.Diff(want, decodeChunks(single), opts); diff != "" {
		t.Fatalf("byte-by-byte mismatch (-want +got):\n%s", diff)
	}

	// Random chunk sizes, including empty chunks.
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 200; round++ {
		var chunks [][]byte
		rest := stream
		for len(rest) > 0 {
			n := rng.Intn(24)
			if n > len(rest) {
				n = len(rest)
			}
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}
		if diff := cmp.Diff(want, decodeChunks(chunks), opts); diff != "" {
			t.Fatalf("round %d mismatch (-want +got):\n%s", round, diff)
		}
	}
}

func TestTypePredicates(t *testing.T) {
	tests := []struct {
		typ       Type
		control   bool
		handshake bool
		name      string
	}{
		{TypeStartHandshake, false, true, "StartHandshake"},
		{TypeHandshakeFinishedResponse, false, true, "HandshakeFinishedResponse"},
		{TypeCommand, false, false, "Command"},
		{TypeEvent, false, false, "Event"},
		{Type(0xEF), false, false, "Unknown(0xEF)"},
		{Type(0xF0), true, false, "Unknown(0xF0)"},
		{TypeClientBlocked, true, false, "ClientBlocked"},
		{TypeEncryptionError, true, false, "EncryptionError"},
	}

	for _, tt := range tests {
		if got := tt.typ.IsControl(); got != tt.control {
			t.Errorf("%s.IsControl() = %v, want %v", tt.name, got, tt.control)
		}
		if got := tt.typ.IsHandshake(); got != tt.handshake {
			t.Errorf("%s.IsHandshake() = %v, want %v", tt.name, got, tt.handshake)
		}
		if got := tt.typ.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
	}
}
