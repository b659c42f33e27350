//go:build linux

package main

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// openDevice opens the default HCI controller.
func openDevice() (ble.Device, error) {
	dev, err := linux.NewDevice()
	if err != nil {
		return nil, err
	}
	return dev, nil
}
