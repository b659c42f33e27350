package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed link.
	ErrClosed = errors.New("transport: closed")

	// ErrLinkUnavailable is returned when the physical link cannot be opened
	// or was lost.
	ErrLinkUnavailable = errors.New("transport: link unavailable")

	// ErrAlreadySubscribed is returned when a second notification handler is registered.
	ErrAlreadySubscribed = errors.New("transport: notification handler already registered")

	// ErrAlreadyConnected is returned when connecting a peripheral that already
	// holds an open link.
	ErrAlreadyConnected = errors.New("transport: peripheral not yet disconnected")

	// ErrSendFailed is returned when writing to the link fails.
	ErrSendFailed = errors.New("transport: send failed")
)
