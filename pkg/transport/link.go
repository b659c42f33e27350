// Package transport defines the byte-level link to a Bold peripheral.
//
// A Link is an already connected characteristic pair: writes go to the
// device's receive characteristic, notifications arrive from its transmit
// characteristic in chunks that are not aligned to frame boundaries.
// Connection establishment is owned by a Peripheral.
//
// Two implementations exist: the GATT link in pkg/transport/gatt, and the
// in-memory Pipe in this package for tests and the device emulator.
package transport

import "context"

// NotificationHandler receives raw notification chunks in arrival order.
// It is called from a single goroutine per link.
type NotificationHandler func(chunk []byte)

// Link is a connected bidirectional byte channel to a peripheral.
type Link interface {
	// Write sends bytes to the peripheral.
	Write(p []byte) error

	// Subscribe registers the handler for incoming notifications.
	// Only one handler may be registered per link.
	Subscribe(h NotificationHandler) error

	// Disconnected returns a channel closed when the link goes down,
	// whether by Close or by the peer.
	Disconnected() <-chan struct{}

	// Close tears the link down. It is safe to call more than once.
	Close() error
}

// Peripheral is a connectable remote device.
type Peripheral interface {
	// Address returns a printable address (MAC on Linux, UUID on macOS).
	Address() string

	// Connect opens a Link. It returns ErrAlreadyConnected if a previous
	// link is still open, and honours ctx cancellation while connecting.
	Connect(ctx context.Context) (Link, error)
}
