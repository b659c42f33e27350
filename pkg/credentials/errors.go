package credentials

import "errors"

// Credential material errors.
var (
	// ErrInvalidKey indicates a handshake key that is not 16 bytes.
	ErrInvalidKey = errors.New("credentials: handshake key must be 16 bytes")

	// ErrEmptyPayload indicates material without a signed payload.
	ErrEmptyPayload = errors.New("credentials: empty payload")

	// ErrInvalidCommandType indicates an unknown command type.
	ErrInvalidCommandType = errors.New("credentials: invalid command type")

	// ErrInvalidEncoding indicates malformed JSON or base64 material.
	ErrInvalidEncoding = errors.New("credentials: invalid encoding")

	// ErrExpired indicates material whose expiration has passed.
	ErrExpired = errors.New("credentials: material expired")

	// ErrDeviceMismatch indicates handshake and command belong to different devices.
	ErrDeviceMismatch = errors.New("credentials: handshake and command device IDs differ")

	// ErrNotFound indicates no stored material exists for a device.
	ErrNotFound = errors.New("credentials: material not found")
)
