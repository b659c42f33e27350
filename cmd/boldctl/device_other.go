//go:build !linux

package main

import (
	"errors"
	"runtime"

	"github.com/go-ble/ble"
)

func openDevice() (ble.Device, error) {
	return nil, errors.New("bluetooth is not supported on " + runtime.GOOS)
}
