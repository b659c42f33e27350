// Package discovery finds Bold cylinders by their BLE advertisements.
//
// This package provides:
//   - Decoding of the 14-byte manufacturer data every cylinder advertises
//   - The compatibility filter hosts apply before connecting
//   - A one-shot wait for the Bluetooth adapter to power on
//   - A Resolver that scans for a set of device IDs with early stop
package discovery

import "time"

// Advertisement constants.
const (
	// ManufacturerID is the Bluetooth SIG company identifier in every advertisement.
	ManufacturerID uint16 = 0x065B

	// ManufacturerDataSize is the exact size of the manufacturer data blob.
	ManufacturerDataSize = 14

	// ServiceUUID is the 16-bit service UUID cylinders advertise.
	ServiceUUID uint16 = 0xFD30

	// DefaultDiscoverTimeout bounds a discovery run.
	DefaultDiscoverTimeout = 30 * time.Second
)

// DeviceType is the product category in the advertisement.
type DeviceType uint8

// DeviceType constants.
const (
	// DeviceTypeUnknown is any type this package does not name.
	DeviceTypeUnknown DeviceType = 0
	// DeviceTypeCylinder is the Bold smart cylinder.
	DeviceTypeCylinder DeviceType = 1
)

// String returns a human-readable name for the device type.
func (t DeviceType) String() string {
	switch t {
	case DeviceTypeCylinder:
		return "SmartCylinder"
	default:
		return "Unknown"
	}
}

// Flags is the advertisement status bit field.
type Flags uint8

// Flag bits.
const (
	FlagInstallable     Flags = 1 << 0
	FlagEventsAvailable Flags = 1 << 1
	FlagTimeSyncNeeded  Flags = 1 << 2
	FlagDFUMode         Flags = 1 << 3
)

// Has reports whether every bit of f2 is set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// AdapterState is the power state of the local Bluetooth adapter.
type AdapterState int

// AdapterState constants.
const (
	AdapterStateUnknown AdapterState = iota
	AdapterStateUnsupported
	AdapterStateUnauthorized
	AdapterStatePoweredOff
	AdapterStatePoweredOn
)

// String returns a human-readable name for the adapter state.
func (s AdapterState) String() string {
	switch s {
	case AdapterStateUnsupported:
		return "Unsupported"
	case AdapterStateUnauthorized:
		return "Unauthorized"
	case AdapterStatePoweredOff:
		return "PoweredOff"
	case AdapterStatePoweredOn:
		return "PoweredOn"
	default:
		return "Unknown"
	}
}
