package session

import (
	"errors"
	"fmt"
)

// Session package errors.
var (
	// ErrLinkUnavailable is returned when the physical link is missing, fails
	// a write, or drops while a call is pending.
	ErrLinkUnavailable = errors.New("session: link unavailable")

	// ErrHandshakeFailed is returned when the device rejects the handshake or
	// echoes the wrong client challenge. The session must not be retried.
	ErrHandshakeFailed = errors.New("session: handshake failed")

	// ErrProtocolDesync is returned for an unexpected frame type or size.
	ErrProtocolDesync = errors.New("session: protocol desync")

	// ErrTimeout is returned when the caller's deadline expires or the call is
	// cancelled. The context error is wrapped alongside it.
	ErrTimeout = errors.New("session: timeout")

	// ErrDeviceReported is the parent of the device control-frame errors.
	ErrDeviceReported = errors.New("session: device reported error")

	// ErrCallInProgress is returned when a call is attempted while another is pending.
	ErrCallInProgress = errors.New("session: call already in progress")

	// ErrNotAuthenticated is returned for encrypted calls before the handshake completed.
	ErrNotAuthenticated = errors.New("session: not authenticated")

	// ErrInvalidState is returned when Handshake is called outside StateConnected.
	ErrInvalidState = errors.New("session: invalid state")

	// ErrClosed is returned for operations on a closed connection.
	ErrClosed = errors.New("session: connection closed")
)

// Device control-frame errors. Each satisfies errors.Is(err, ErrDeviceReported).
var (
	// ErrClientBlocked is reported when the device has blocked this client.
	ErrClientBlocked = fmt.Errorf("%w: client blocked", ErrDeviceReported)

	// ErrHandshakeExpired is reported when the handshake material has expired.
	ErrHandshakeExpired = fmt.Errorf("%w: handshake expired", ErrDeviceReported)

	// ErrEncryptionError is reported when the device failed to decrypt a frame.
	ErrEncryptionError = fmt.Errorf("%w: encryption error", ErrDeviceReported)
)
