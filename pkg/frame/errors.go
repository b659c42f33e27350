package frame

import "errors"

// Frame layer errors.
var (
	// ErrControlFrame is returned when encoding a control frame; those are only
	// ever sent by the device.
	ErrControlFrame = errors.New("frame: control frames cannot be encoded")

	// ErrPayloadTooLarge is returned when a payload does not fit the 16-bit length field.
	ErrPayloadTooLarge = errors.New("frame: payload exceeds 65535 bytes")
)

// Wire format constants.
const (
	// HeaderSize is the size of a data frame header: type (1) + length (2).
	HeaderSize = 3

	// MaxPayloadSize is the largest payload a data frame can carry.
	MaxPayloadSize = 0xFFFF
)
