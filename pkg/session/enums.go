// Package session implements an authenticated connection to a Bold cylinder
// over a BLE link.
//
// A Connection owns the frame decoder and the session cryptor for exactly one
// physical link. It runs the four-step handshake, then serves one request/reply
// call at a time. Any device-reported error, unexpected frame, timeout or link
// loss is fatal: the connection moves to Disconnected and must not be reused.
//
// Wire layout and counter discipline:
//   - Handshake frames (0xA0-0xA3) travel in the clear, with the handshake
//     response encrypted by a cryptor keyed from the cloud handshake key.
//   - Every other frame payload is processed by the session cryptor in the
//     exact order frames are exchanged, so both peers' block counters stay in
//     lockstep.
package session

// State is the connection lifecycle state.
type State int

const (
	// StateDisconnected is the terminal state. All cryptor state is discarded.
	StateDisconnected State = iota
	// StateConnected means the link is up and notifications are subscribed.
	StateConnected
	// StateHandshaking means the handshake is in progress.
	StateHandshaking
	// StateAuthenticated means the session cryptor is established.
	StateAuthenticated
	// StateBusy means an encrypted call is in flight.
	StateBusy
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnected:
		return "Connected"
	case StateHandshaking:
		return "Handshaking"
	case StateAuthenticated:
		return "Authenticated"
	case StateBusy:
		return "Busy"
	default:
		return "Unknown"
	}
}

// handshake sizes.
const (
	// challengeSize is the length of both the server and client challenges.
	challengeSize = 8

	// handshakeResponseSize is nonce (13) followed by the server challenge (8).
	handshakeResponseSize = 13 + challengeSize

	// finishedResponseSize is the result byte followed by the echoed client challenge.
	finishedResponseSize = 1 + challengeSize
)
