package lock

import "errors"

// Lock package errors.
var (
	// ErrAccessDenied is returned when the device rejects the command by policy
	// (acknowledgement result 0xF0). It is not a protocol fault.
	ErrAccessDenied = errors.New("lock: access denied")

	// ErrUnexpectedResult is returned for any other non-zero acknowledgement result.
	ErrUnexpectedResult = errors.New("lock: unexpected command result")

	// ErrActivationInProgress is returned when the same device is already being activated.
	ErrActivationInProgress = errors.New("lock: activation already in progress")

	// ErrNotActivation is returned when Activate is given a command of any type
	// other than credentials.CommandActivate.
	ErrNotActivation = errors.New("lock: command is not an activation")

	// ErrNoPeripheral is returned when Activate is called without a peripheral.
	ErrNoPeripheral = errors.New("lock: no peripheral")
)
