// Package gatt implements the transport interfaces on top of go-ble.
//
// Bold cylinders advertise the 16-bit service 0xFD30 and talk over a Nordic
// UART service: the host writes to the RX characteristic and receives
// notifications on the TX characteristic.
package gatt

import (
	"github.com/backkem/bold/pkg/discovery"
	"github.com/go-ble/ble"
)

// Service and characteristic UUIDs.
var (
	// ServiceUUID is the advertised service of every cylinder.
	ServiceUUID = ble.UUID16(discovery.ServiceUUID)

	// RXCharUUID is written by the host.
	RXCharUUID = ble.MustParse("6e400002-b5a3-f393-e0a9-e50e24dcca9e")

	// TXCharUUID notifies the host.
	TXCharUUID = ble.MustParse("6e400003-b5a3-f393-e0a9-e50e24dcca9e")
)

// attHeaderSize is subtracted from the ATT MTU to get the write payload size.
const attHeaderSize = 3

// findCharacteristics locates the UART characteristics anywhere in the profile.
func findCharacteristics(p *ble.Profile) (rx, tx *ble.Characteristic, err error) {
	if p == nil {
		return nil, nil, ErrCharacteristicNotFound
	}
	for _, s := range p.Services {
		for _, c := range s.Characteristics {
			switch {
			case c.UUID.Equal(RXCharUUID):
				rx = c
			case c.UUID.Equal(TXCharUUID):
				tx = c
			}
		}
	}
	if rx == nil || tx == nil {
		return nil, nil, ErrCharacteristicNotFound
	}
	if tx.Property&(ble.CharNotify|ble.CharIndicate) == 0 {
		return nil, nil, ErrNotNotifiable
	}
	return rx, tx, nil
}
