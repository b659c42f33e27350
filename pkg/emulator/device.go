// Package emulator implements the device side of the Bold BLE link protocol.
//
// A Device answers the handshake and activation commands exactly as a
// cylinder does, mirroring the client's cryptor counters, and can be told to
// misbehave: reject the handshake, echo a corrupted challenge, deny access,
// inject events, reply with control frames or stay silent. It runs either as a
// pure frame-in/frames-out state machine (Handle) or over the peripheral end
// of a transport.Pipe (Serve).
package emulator

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/backkem/bold/pkg/crypto"
	"github.com/backkem/bold/pkg/frame"
	"github.com/pion/logging"
)

// Command acknowledgement results.
const (
	// ResultSuccess acknowledges an executed command.
	ResultSuccess byte = 0x00
	// ResultAccessDenied rejects a command by policy.
	ResultAccessDenied byte = 0xF0
)

// ErrInvalidKey is returned when the configured handshake key is not 16 bytes.
var ErrInvalidKey = errors.New("emulator: handshake key must be 16 bytes")

// Fault replaces the device's normal reply to one request type.
type Fault struct {
	// Reply is sent instead of the normal reply. Control types go out as a
	// single byte, other types as an empty data frame.
	Reply frame.Type

	// Silent suppresses any reply.
	Silent bool
}

// Config configures an emulated device.
type Config struct {
	// HandshakeKey is the 16-byte key shared with the cloud. Required.
	HandshakeKey []byte

	// HandshakePayload, if set, must match the StartHandshake payload.
	// A mismatch is answered with HandshakeExpired.
	HandshakePayload []byte

	// Nonce is the 13-byte nonce to issue. Random if nil.
	Nonce []byte

	// Rand is the source for the nonce and server challenge.
	// Default: crypto/rand.Reader
	Rand io.Reader

	// HandshakeResult is the result byte of the finished response.
	HandshakeResult byte

	// CorruptEcho flips one bit of the echoed client challenge.
	CorruptEcho bool

	// CommandResult is the result byte of the command acknowledgement.
	CommandResult byte

	// ActivationSeconds is reported in a successful acknowledgement.
	ActivationSeconds uint16

	// TruncateAck sends only the result byte in the acknowledgement.
	TruncateAck bool

	// EventsBeforeReply injects this many Event frames ahead of every reply.
	EventsBeforeReply int

	// Faults overrides the reply for specific request types.
	Faults map[frame.Type]Fault

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Device is an emulated cylinder.
type Device struct {
	config Config
	log    logging.LeveledLogger

	mu              sync.Mutex
	nonce           []byte
	serverChallenge []byte
	hs              *crypto.Cryptor
	session         *crypto.Cryptor
	received        []frame.Type
	commands        [][]byte
}

// New creates an emulated device.
func New(config Config) (*Device, error) {
	if len(config.HandshakeKey) != crypto.KeySize {
		return nil, ErrInvalidKey
	}
	if config.Nonce != nil && len(config.Nonce) != crypto.NonceSize {
		return nil, crypto.ErrInvalidNonceSize
	}

	d := &Device{config: config}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("bold-emulator")
	}
	return d, nil
}

// Authenticated reports whether the device holds a session cryptor.
func (d *Device) Authenticated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session != nil
}

// Received returns the types of all frames received so far.
func (d *Device) Received() []frame.Type {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]frame.Type(nil), d.received...)
}

// Commands returns the decrypted payloads of all commands received.
func (d *Device) Commands() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.commands))
	for i, c := range d.commands {
		out[i] = append([]byte(nil), c...)
	}
	return out
}

// Handle processes one frame from the client and returns the frames to send back.
func (d *Device) Handle(f frame.Frame) []frame.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.received = append(d.received, f.Type)

	if fault, ok := d.config.Faults[f.Type]; ok {
		if d.log != nil {
			d.log.Debugf("fault for %s: silent=%v reply=%s", f.Type, fault.Silent, fault.Reply)
		}
		if fault.Silent {
			return nil
		}
		return d.withEvents(frame.Frame{Type: fault.Reply, Payload: []byte{}})
	}

	var reply frame.Frame
	switch f.Type {
	case frame.TypeStartHandshake:
		reply = d.startHandshake(f.Payload)
	case frame.TypeHandshakeClientResponse:
		reply = d.clientResponse(f.Payload)
	case frame.TypeCommand:
		reply = d.command(f.Payload)
	default:
		if d.log != nil {
			d.log.Debugf("no reply for %s", f.Type)
		}
		return nil
	}
	return d.withEvents(reply)
}

func (d *Device) withEvents(reply frame.Frame) []frame.Frame {
	out := make([]frame.Frame, 0, d.config.EventsBeforeReply+1)
	for i := 0; i < d.config.EventsBeforeReply; i++ {
		out = append(out, frame.Frame{Type: frame.TypeEvent, Payload: []byte{byte(i)}})
	}
	return append(out, reply)
}

func (d *Device) startHandshake(payload []byte) frame.Frame {
	if d.config.HandshakePayload != nil && !bytes.Equal(payload, d.config.HandshakePayload) {
		return control(frame.TypeHandshakeExpired)
	}

	nonce := d.config.Nonce
	if nonce == nil {
		var err error
		if nonce, err = crypto.ReadRandom(d.config.Rand, crypto.NonceSize); err != nil {
			return control(frame.TypeEncryptionError)
		}
	}
	challenge, err := crypto.ReadRandom(d.config.Rand, 8)
	if err != nil {
		return control(frame.TypeEncryptionError)
	}

	hs, err := crypto.NewCryptor(d.config.HandshakeKey, nonce)
	if err != nil {
		return control(frame.TypeEncryptionError)
	}

	d.nonce = append([]byte(nil), nonce...)
	d.serverChallenge = challenge
	d.hs = hs
	d.session = nil

	resp := append(append([]byte{}, d.nonce...), challenge...)
	return frame.Frame{Type: frame.TypeHandshakeResponse, Payload: resp}
}

func (d *Device) clientResponse(payload []byte) frame.Frame {
	if d.hs == nil || len(payload) != crypto.KeySize {
		return control(frame.TypeEncryptionError)
	}

	// Same order as the client: challenge first, then the response.
	expected := d.hs.Process(d.serverChallenge)
	sessionKey := d.hs.Process(payload)
	if subtle.ConstantTimeCompare(sessionKey[:8], expected) != 1 {
		if d.log != nil {
			d.log.Warn("client failed the server challenge")
		}
		return control(frame.TypeEncryptionError)
	}

	session, err := crypto.NewCryptor(sessionKey, d.nonce)
	if err != nil {
		return control(frame.TypeEncryptionError)
	}

	finished := make([]byte, 0, 9)
	finished = append(finished, d.config.HandshakeResult)
	finished = append(finished, sessionKey[8:]...)
	if d.config.CorruptEcho {
		finished[1] ^= 0x01
	}

	d.session = session
	return frame.Frame{Type: frame.TypeHandshakeFinishedResponse, Payload: session.Process(finished)}
}

func (d *Device) command(payload []byte) frame.Frame {
	if d.session == nil {
		return control(frame.TypeEncryptionError)
	}

	d.commands = append(d.commands, d.session.Process(payload))

	ack := []byte{d.config.CommandResult, 0, 0}
	if d.config.CommandResult == ResultSuccess {
		binary.LittleEndian.PutUint16(ack[1:], d.config.ActivationSeconds)
	}
	if d.config.TruncateAck {
		ack = ack[:1]
	}
	return frame.Frame{Type: frame.TypeCommandAck, Payload: d.session.Process(ack)}
}

func control(t frame.Type) frame.Frame {
	return frame.Frame{Type: t, Payload: []byte{}}
}

// Marshal serializes frames into one notification stream. Control frames are
// a single byte; data frames use the normal header.
func Marshal(frames []frame.Frame) []byte {
	var out []byte
	for _, f := range frames {
		if f.Type.IsControl() {
			out = append(out, byte(f.Type))
			continue
		}
		wire, err := f.Encode()
		if err != nil {
			continue
		}
		out = append(out, wire...)
	}
	return out
}
