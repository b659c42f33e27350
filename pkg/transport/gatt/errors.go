package gatt

import "errors"

// GATT transport errors.
var (
	// ErrNoDevice is returned when a component is created without a ble.Device.
	ErrNoDevice = errors.New("gatt: no ble device")

	// ErrCharacteristicNotFound is returned when the peripheral does not
	// expose both Nordic UART characteristics.
	ErrCharacteristicNotFound = errors.New("gatt: uart characteristic not found")

	// ErrNotNotifiable is returned when the transmit characteristic cannot notify.
	ErrNotNotifiable = errors.New("gatt: transmit characteristic does not notify")
)
