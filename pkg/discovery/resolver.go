package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/backkem/bold/pkg/transport"
	"github.com/pion/logging"
)

// Advertisement is one advertising report from a scan.
type Advertisement struct {
	// Peripheral connects to the advertiser.
	Peripheral transport.Peripheral

	// RSSI is the received signal strength in dBm.
	RSSI int

	// ManufacturerData is the raw manufacturer specific data, including the
	// leading company identifier.
	ManufacturerData []byte
}

// Scanner is the interface for BLE scanning.
// This allows for dependency injection in tests.
type Scanner interface {
	// Scan reports advertisements carrying ServiceUUID to h until ctx is done.
	// It returns nil when stopped by ctx.
	Scan(ctx context.Context, h func(Advertisement)) error
}

// Adapter exposes the power state of the local Bluetooth adapter.
type Adapter interface {
	// State returns the current state.
	State() AdapterState

	// Watch calls fn on every state change until the returned func is called.
	Watch(fn func(AdapterState)) (stop func())
}

// Device is a discovered cylinder.
type Device struct {
	Info       DeviceInfo
	Peripheral transport.Peripheral
	RSSI       int
}

// WaitForAdapter blocks until the adapter is powered on or ctx is done.
// A nil adapter is treated as always powered on.
func WaitForAdapter(ctx context.Context, a Adapter) error {
	if a == nil {
		return nil
	}

	ready := make(chan struct{})
	var once sync.Once
	// Watch before reading the state so a transition in between is not missed.
	stop := a.Watch(func(s AdapterState) {
		if s == AdapterStatePoweredOn {
			once.Do(func() { close(ready) })
		}
	})
	defer stop()

	if a.State() == AdapterStatePoweredOn {
		return nil
	}

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrAdapterTimeout, ctx.Err())
	}
}

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// Scanner is the BLE scanner. Required.
	Scanner Scanner

	// Adapter is waited on before scanning. Optional.
	Adapter Adapter

	// Timeout bounds a Discover call.
	// If zero, DefaultDiscoverTimeout is used.
	Timeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Resolver discovers cylinders by device ID.
type Resolver struct {
	config ResolverConfig
	log    logging.LeveledLogger
}

// NewResolver creates a new Resolver with the given configuration.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	if config.Scanner == nil {
		return nil, ErrNoScanner
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultDiscoverTimeout
	}

	r := &Resolver{config: config}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("bold-discovery")
	}
	return r, nil
}

// Discover scans for the given device IDs and returns those found, keyed by
// device ID. Scanning stops as soon as every requested ID has been seen, or
// when the timeout or ctx expires, in which case the partial result is
// returned without error. A nil deviceIDs collects every cylinder seen until
// the timeout; an empty non-nil slice returns immediately.
//
// Advertisements with malformed manufacturer data are ignored. When a device
// advertises more than once, the last report wins.
func (r *Resolver) Discover(ctx context.Context, deviceIDs []uint64) (map[uint64]*Device, error) {
	found := make(map[uint64]*Device)
	if deviceIDs != nil && len(deviceIDs) == 0 {
		return found, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	if err := WaitForAdapter(ctx, r.config.Adapter); err != nil {
		return nil, err
	}

	wanted := make(map[uint64]bool, len(deviceIDs))
	for _, id := range deviceIDs {
		wanted[id] = true
	}

	scanCtx, stopScan := context.WithCancel(ctx)
	defer stopScan()

	var mu sync.Mutex
	done := false
	handle := func(adv Advertisement) {
		info, err := ParseAdvertisement(adv.ManufacturerData)
		if err != nil {
			if r.log != nil {
				r.log.Tracef("ignoring advertisement: %v", err)
			}
			return
		}
		if deviceIDs != nil && !wanted[info.DeviceID] {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if done {
			return
		}

		if _, seen := found[info.DeviceID]; !seen && r.log != nil {
			r.log.Debugf("found %s at %d dBm", info, adv.RSSI)
		}
		found[info.DeviceID] = &Device{Info: info, Peripheral: adv.Peripheral, RSSI: adv.RSSI}

		if deviceIDs != nil && len(found) == len(wanted) {
			stopScan()
		}
	}

	err := r.config.Scanner.Scan(scanCtx, handle)

	mu.Lock()
	done = true
	result := make(map[uint64]*Device, len(found))
	for id, d := range found {
		result[id] = d
	}
	mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return result, err
	}
	return result, nil
}
