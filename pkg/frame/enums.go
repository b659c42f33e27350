// Package frame implements the Bold BLE link framing.
//
// The device exchanges frames over a Nordic UART style characteristic pair.
// Notifications arrive in arbitrary chunks, so incoming bytes are reassembled
// by a Decoder. Two wire shapes exist:
//   - Control frames: a single type byte >= 0xF0, no payload
//   - Data frames: type byte, little-endian uint16 length, payload
package frame

import "fmt"

// Type identifies a frame on the wire.
type Type uint8

// Frame types spoken by Bold devices.
const (
	// TypeResultSuccess is the generic success result code.
	TypeResultSuccess Type = 0x00

	// TypeStartHandshake carries the opaque handshake payload (app => lock).
	TypeStartHandshake Type = 0xA0
	// TypeHandshakeResponse carries nonce(13) || server challenge(8) (lock => app).
	TypeHandshakeResponse Type = 0xA1
	// TypeHandshakeClientResponse carries the encrypted client response (app => lock).
	TypeHandshakeClientResponse Type = 0xA2
	// TypeHandshakeFinishedResponse carries the encrypted result and echo (lock => app).
	TypeHandshakeFinishedResponse Type = 0xA3

	// TypeCommand carries the encrypted command payload (app => lock).
	TypeCommand Type = 0xA4
	// TypeCommandAck carries the encrypted result and activation time (lock => app).
	TypeCommandAck Type = 0xA5

	// Connect Hub local packets.
	TypeLocalCommand         Type = 0xA6
	TypeLocalCommandResponse Type = 0xA7

	TypeDeliverMessages Type = 0xB0

	// Dialog packets (installation pairing, time sync).
	TypeDialogServer Type = 0xC0
	TypeDialogDevice Type = 0xC1

	// TypeEvent is sent unsolicited by the device and may interleave with replies.
	TypeEvent            Type = 0xD0
	TypeEventAck         Type = 0xD1
	TypeEventAckResponse Type = 0xD2

	// Control frames (lock => app, no payload).
	TypeClientBlocked    Type = 0xFD
	TypeHandshakeExpired Type = 0xFE
	TypeEncryptionError  Type = 0xFF
)

// controlThreshold is the lowest type value encoded without a length prefix.
const controlThreshold Type = 0xF0

// IsControl reports whether frames of this type carry no length or payload.
func (t Type) IsControl() bool {
	return t >= controlThreshold
}

// IsHandshake reports whether the type belongs to the unencrypted handshake range.
func (t Type) IsHandshake() bool {
	return t >= TypeStartHandshake && t <= TypeHandshakeFinishedResponse
}

// String returns a human-readable name for the frame type.
func (t Type) String() string {
	switch t {
	case TypeResultSuccess:
		return "ResultSuccess"
	case TypeStartHandshake:
		return "StartHandshake"
	case TypeHandshakeResponse:
		return "HandshakeResponse"
	case TypeHandshakeClientResponse:
		return "HandshakeClientResponse"
	case TypeHandshakeFinishedResponse:
		return "HandshakeFinishedResponse"
	case TypeCommand:
		return "Command"
	case TypeCommandAck:
		return "CommandAck"
	case TypeLocalCommand:
		return "LocalCommand"
	case TypeLocalCommandResponse:
		return "LocalCommandResponse"
	case TypeDeliverMessages:
		return "DeliverMessages"
	case TypeDialogServer:
		return "DialogServer"
	case TypeDialogDevice:
		return "DialogDevice"
	case TypeEvent:
		return "Event"
	case TypeEventAck:
		return "EventAck"
	case TypeEventAckResponse:
		return "EventAckResponse"
	case TypeClientBlocked:
		return "ClientBlocked"
	case TypeHandshakeExpired:
		return "HandshakeExpired"
	case TypeEncryptionError:
		return "EncryptionError"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(t))
	}
}
