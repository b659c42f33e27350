package discovery

import "errors"

// Package-level sentinel errors for discovery operations.
var (
	// ErrInvalidLength is returned when manufacturer data is not 14 bytes.
	ErrInvalidLength = errors.New("discovery: manufacturer data must be 14 bytes")

	// ErrInvalidManufacturer is returned when the manufacturer ID is not 0x065B.
	ErrInvalidManufacturer = errors.New("discovery: unexpected manufacturer ID")

	// ErrNotCylinder is returned by Usable for devices that are not smart cylinders.
	ErrNotCylinder = errors.New("discovery: device is not a smart cylinder")

	// ErrDFUMode is returned by Usable for devices in firmware update mode.
	ErrDFUMode = errors.New("discovery: device is in DFU mode")

	// ErrNotInstalled is returned by Usable for devices not yet installed.
	ErrNotInstalled = errors.New("discovery: device is not installed")

	// ErrAdapterTimeout is returned when the adapter does not power on in time.
	ErrAdapterTimeout = errors.New("discovery: timed out waiting for Bluetooth adapter")

	// ErrNoScanner is returned when a Resolver is built without a Scanner.
	ErrNoScanner = errors.New("discovery: no scanner configured")
)
