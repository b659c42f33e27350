package gatt

import (
	"context"
	"sync"

	"github.com/backkem/bold/pkg/discovery"
	"github.com/go-ble/ble"
	"github.com/pion/logging"
)

// ScannerConfig configures a Scanner.
type ScannerConfig struct {
	// Device is the local controller. Required.
	Device ble.Device

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Scanner reports cylinder advertisements seen by a ble.Device.
type Scanner struct {
	config ScannerConfig
	log    logging.LeveledLogger

	mu          sync.Mutex
	peripherals map[string]*Peripheral
}

// NewScanner creates a Scanner.
func NewScanner(config ScannerConfig) (*Scanner, error) {
	if config.Device == nil {
		return nil, ErrNoDevice
	}
	s := &Scanner{
		config:      config,
		peripherals: make(map[string]*Peripheral),
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("bold-gatt")
	}
	return s, nil
}

// Scan implements discovery.Scanner. Duplicates are reported so RSSI and
// flags stay current. Advertisements without ServiceUUID are dropped.
func (s *Scanner) Scan(ctx context.Context, h func(discovery.Advertisement)) error {
	err := s.config.Device.Scan(ctx, true, func(a ble.Advertisement) {
		if !advertisesService(a) {
			return
		}
		h(discovery.Advertisement{
			Peripheral:       s.peripheral(a.Addr()),
			RSSI:             a.RSSI(),
			ManufacturerData: append([]byte(nil), a.ManufacturerData()...),
		})
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// peripheral returns the same Peripheral for every advertisement of an address.
func (s *Scanner) peripheral(addr ble.Addr) *Peripheral {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := addr.String()
	p, ok := s.peripherals[key]
	if !ok {
		p = NewPeripheral(s.config.Device, addr, s.config.LoggerFactory)
		s.peripherals[key] = p
		if s.log != nil {
			s.log.Tracef("new peripheral %s", key)
		}
	}
	return p
}

func advertisesService(a ble.Advertisement) bool {
	if ble.Contains(a.Services(), ServiceUUID) {
		return true
	}
	for _, sd := range a.ServiceData() {
		if sd.UUID.Equal(ServiceUUID) {
			return true
		}
	}
	return false
}
