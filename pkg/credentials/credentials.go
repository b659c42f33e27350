// Package credentials holds the cloud-issued material a client needs to
// activate a Bold cylinder: a handshake (key plus opaque payload) and a
// signed command payload. Both expire and are refreshed out of band.
package credentials

import (
	"time"
)

// KeySize is the size of a handshake key in bytes.
const KeySize = 16

// DefaultRefreshMargin is how long before expiry material should be refreshed.
const DefaultRefreshMargin = 24 * time.Hour

// Handshake is the material for authenticating a BLE session.
type Handshake struct {
	// DeviceID identifies the cylinder the handshake was issued for.
	DeviceID uint64
	// Key is the 16-byte AES key for the handshake cryptor.
	Key []byte
	// Payload is sent verbatim in StartHandshake.
	Payload []byte
	// ExpiresAt is when the device stops accepting this handshake.
	ExpiresAt time.Time
}

// Validate checks the structural requirements of the handshake.
func (h Handshake) Validate() error {
	if len(h.Key) != KeySize {
		return ErrInvalidKey
	}
	if len(h.Payload) == 0 {
		return ErrEmptyPayload
	}
	return nil
}

// Expired reports whether the handshake has expired at now.
// A zero ExpiresAt never expires.
func (h Handshake) Expired(now time.Time) bool {
	return expired(h.ExpiresAt, now)
}

// NeedsRefresh reports whether the handshake expires within margin of now.
func (h Handshake) NeedsRefresh(now time.Time, margin time.Duration) bool {
	return needsRefresh(h.ExpiresAt, now, margin)
}

// Command is a signed, encrypted command for one device.
type Command struct {
	DeviceID  uint64
	Type      CommandType
	Payload   []byte
	ExpiresAt time.Time
}

// Validate checks the structural requirements of the command.
func (c Command) Validate() error {
	if !c.Type.IsValid() {
		return ErrInvalidCommandType
	}
	if len(c.Payload) == 0 {
		return ErrEmptyPayload
	}
	return nil
}

// Expired reports whether the command has expired at now.
func (c Command) Expired(now time.Time) bool {
	return expired(c.ExpiresAt, now)
}

// NeedsRefresh reports whether the command expires within margin of now.
func (c Command) NeedsRefresh(now time.Time, margin time.Duration) bool {
	return needsRefresh(c.ExpiresAt, now, margin)
}

// CheckPair validates an activation pair at now: both must be well-formed,
// unexpired and issued for the same device.
func CheckPair(h Handshake, c Command, now time.Time) error {
	if err := h.Validate(); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if h.DeviceID != c.DeviceID {
		return ErrDeviceMismatch
	}
	if h.Expired(now) || c.Expired(now) {
		return ErrExpired
	}
	return nil
}

func expired(at, now time.Time) bool {
	return !at.IsZero() && !now.Before(at)
}

func needsRefresh(at, now time.Time, margin time.Duration) bool {
	return !at.IsZero() && at.Sub(now) < margin
}
