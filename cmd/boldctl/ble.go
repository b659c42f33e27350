package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/backkem/bold/pkg/lock"
	"github.com/backkem/bold/pkg/transport/gatt"
	"github.com/pion/logging"
)

// newBLEManager opens the local controller and returns a lock.Manager
// scanning through it, plus the adapter to stop when done.
func newBLEManager(lf logging.LoggerFactory, discoverTimeout, activateTimeout time.Duration) (*lock.Manager, *gatt.Adapter, error) {
	dev, err := openDevice()
	if err != nil {
		return nil, nil, fmt.Errorf("open bluetooth device: %w", err)
	}

	scanner, err := gatt.NewScanner(gatt.ScannerConfig{Device: dev, LoggerFactory: lf})
	if err != nil {
		return nil, nil, err
	}
	adapter := gatt.NewAdapter(dev)

	m := lock.NewManager(lock.Config{
		LoggerFactory:   lf,
		ActivateTimeout: activateTimeout,
		DiscoverTimeout: discoverTimeout,
		Scanner:         scanner,
		Adapter:         adapter,
	})
	return m, adapter, nil
}

// parseDeviceIDs parses a comma separated list of decimal device IDs.
// An empty string yields nil, which discovers every cylinder in range.
func parseDeviceIDs(s string) ([]uint64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []uint64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid device id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
