package discovery

import (
	"encoding/binary"
	"fmt"
)

// DeviceInfo is the decoded manufacturer data of a cylinder advertisement.
//
// Layout (little-endian):
//
//	[0:2]  manufacturer ID (0x065B)
//	[2]    protocol version
//	[3]    device type
//	[4]    model
//	[5:13] device ID
//	[13]   flags
type DeviceInfo struct {
	ProtocolVersion uint8
	Type            DeviceType
	Model           uint8
	DeviceID        uint64
	Flags           Flags
}

// ParseAdvertisement decodes a 14-byte manufacturer data blob.
func ParseAdvertisement(data []byte) (DeviceInfo, error) {
	if len(data) != ManufacturerDataSize {
		return DeviceInfo{}, ErrInvalidLength
	}
	if binary.LittleEndian.Uint16(data[0:2]) != ManufacturerID {
		return DeviceInfo{}, ErrInvalidManufacturer
	}

	return DeviceInfo{
		ProtocolVersion: data[2],
		Type:            DeviceType(data[3]),
		Model:           data[4],
		DeviceID:        binary.LittleEndian.Uint64(data[5:13]),
		Flags:           Flags(data[13]),
	}, nil
}

// Encode returns the 14-byte manufacturer data for info.
func (info DeviceInfo) Encode() []byte {
	data := make([]byte, ManufacturerDataSize)
	binary.LittleEndian.PutUint16(data[0:2], ManufacturerID)
	data[2] = info.ProtocolVersion
	data[3] = byte(info.Type)
	data[4] = info.Model
	binary.LittleEndian.PutUint64(data[5:13], info.DeviceID)
	data[13] = byte(info.Flags)
	return data
}

// Installable reports whether the device is waiting to be installed.
func (info DeviceInfo) Installable() bool { return info.Flags.Has(FlagInstallable) }

// EventsAvailable reports whether the device has events queued for upload.
func (info DeviceInfo) EventsAvailable() bool { return info.Flags.Has(FlagEventsAvailable) }

// TimeSyncNeeded reports whether the device clock needs syncing.
func (info DeviceInfo) TimeSyncNeeded() bool { return info.Flags.Has(FlagTimeSyncNeeded) }

// DFUMode reports whether the device is in firmware update mode.
func (info DeviceInfo) DFUMode() bool { return info.Flags.Has(FlagDFUMode) }

// Usable reports whether a client can activate the device. Only installed
// smart cylinders outside DFU mode qualify.
func (info DeviceInfo) Usable() error {
	switch {
	case info.Type != DeviceTypeCylinder:
		return ErrNotCylinder
	case info.DFUMode():
		return ErrDFUMode
	case info.Installable():
		return ErrNotInstalled
	default:
		return nil
	}
}

// String returns a short description for logging.
func (info DeviceInfo) String() string {
	return fmt.Sprintf("%s(id=%d, v%d, model=%d, flags=0x%02X)",
		info.Type, info.DeviceID, info.ProtocolVersion, info.Model, uint8(info.Flags))
}
