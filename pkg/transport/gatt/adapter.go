package gatt

import (
	"sync"

	"github.com/backkem/bold/pkg/discovery"
	"github.com/go-ble/ble"
)

// Adapter reports the state of a ble.Device.
//
// go-ble only hands out a Device once the controller is open, so a non-nil
// device starts powered on. Stop powers it off and notifies watchers.
type Adapter struct {
	device ble.Device

	mu       sync.Mutex
	state    discovery.AdapterState
	watchers map[int]func(discovery.AdapterState)
	nextID   int
}

// NewAdapter wraps device. A nil device yields an unsupported adapter.
func NewAdapter(device ble.Device) *Adapter {
	a := &Adapter{
		device:   device,
		state:    discovery.AdapterStatePoweredOn,
		watchers: make(map[int]func(discovery.AdapterState)),
	}
	if device == nil {
		a.state = discovery.AdapterStateUnsupported
	}
	return a
}

// State implements discovery.Adapter.
func (a *Adapter) State() discovery.AdapterState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Watch implements discovery.Adapter.
func (a *Adapter) Watch(fn func(discovery.AdapterState)) (stop func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	a.watchers[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.watchers, id)
	}
}

// Stop closes the device.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	if a.device == nil || a.state == discovery.AdapterStatePoweredOff {
		a.mu.Unlock()
		return nil
	}
	a.state = discovery.AdapterStatePoweredOff
	fns := make([]func(discovery.AdapterState), 0, len(a.watchers))
	for _, fn := range a.watchers {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	err := a.device.Stop()
	for _, fn := range fns {
		fn(discovery.AdapterStatePoweredOff)
	}
	return err
}
