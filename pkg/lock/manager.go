// Package lock activates Bold cylinders.
//
// A Manager opens one short-lived authenticated session per activation:
// connect, handshake, send the signed command, read the acknowledgement and
// disconnect. Nothing is cached between activations; every connection runs a
// fresh handshake.
package lock

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/backkem/bold/pkg/credentials"
	"github.com/backkem/bold/pkg/discovery"
	"github.com/backkem/bold/pkg/frame"
	"github.com/backkem/bold/pkg/session"
	"github.com/backkem/bold/pkg/transport"
	"github.com/pion/logging"
)

// Default timeouts.
const (
	// DefaultActivateTimeout bounds connect, handshake and command together.
	DefaultActivateTimeout = 30 * time.Second

	// DefaultDiscoverTimeout bounds a discovery run.
	DefaultDiscoverTimeout = discovery.DefaultDiscoverTimeout
)

// Acknowledgement results.
const (
	resultSuccess      byte = 0x00
	resultAccessDenied byte = 0xF0

	// ackSize is result (1) followed by LE16 activation seconds.
	ackSize = 3
)

// Config configures a Manager.
type Config struct {
	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// ActivateTimeout bounds a whole activation.
	// Default: 30s
	ActivateTimeout time.Duration

	// DiscoverTimeout bounds Discover.
	// Default: 30s
	DiscoverTimeout time.Duration

	// Scanner is used by Discover. Optional.
	Scanner discovery.Scanner

	// Adapter is waited on before scanning. Optional.
	Adapter discovery.Adapter

	// Rand is the source for handshake client challenges.
	// Default: crypto/rand.Reader
	Rand io.Reader

	// Now returns the current time for expiry checks.
	// Default: time.Now
	Now func() time.Time
}

// Manager runs activations and discovery.
type Manager struct {
	config   Config
	log      logging.LeveledLogger
	resolver *discovery.Resolver

	mu         sync.Mutex
	activating map[uint64]bool
}

// NewManager creates a Manager, applying defaults for zero config fields.
func NewManager(config Config) *Manager {
	if config.ActivateTimeout == 0 {
		config.ActivateTimeout = DefaultActivateTimeout
	}
	if config.DiscoverTimeout == 0 {
		config.DiscoverTimeout = DefaultDiscoverTimeout
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	m := &Manager{
		config:     config,
		activating: make(map[uint64]bool),
	}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("bold-lock")
	}

	if config.Scanner != nil {
		// Only fails without a scanner.
		m.resolver, _ = discovery.NewResolver(discovery.ResolverConfig{
			Scanner:       config.Scanner,
			Adapter:       config.Adapter,
			Timeout:       config.DiscoverTimeout,
			LoggerFactory: config.LoggerFactory,
		})
	}
	return m
}

// Activate unlocks the cylinder behind p and returns how long it stays active.
//
// Connect, handshake and command share one deadline of ActivateTimeout. The
// link is closed on every exit path; a close failure is logged and never
// replaces the activation error. Expired or mismatched material is rejected
// before dialing, as is any command that is not an activation.
func (m *Manager) Activate(ctx context.Context, p transport.Peripheral, h credentials.Handshake, c credentials.Command) (time.Duration, error) {
	if p == nil {
		return 0, ErrNoPeripheral
	}
	if err := credentials.CheckPair(h, c, m.config.Now()); err != nil {
		return 0, err
	}
	if c.Type != credentials.CommandActivate {
		return 0, fmt.Errorf("%w: %s", ErrNotActivation, c.Type)
	}

	if !m.begin(h.DeviceID) {
		return 0, ErrActivationInProgress
	}
	defer m.end(h.DeviceID)

	ctx, cancel := context.WithTimeout(ctx, m.config.ActivateTimeout)
	defer cancel()

	d, err := m.activate(ctx, p, h, c)
	if err != nil {
		if m.log != nil {
			m.log.Errorf("could not activate device %d: %v", h.DeviceID, err)
		}
		return 0, err
	}

	if m.log != nil {
		m.log.Infof("activated device %d, auto-deactivates after %s", h.DeviceID, d)
	}
	return d, nil
}

func (m *Manager) activate(ctx context.Context, p transport.Peripheral, h credentials.Handshake, c credentials.Command) (time.Duration, error) {
	link, err := p.Connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: connect %s: %w", session.ErrTimeout, p.Address(), ctx.Err())
		}
		return 0, fmt.Errorf("%w: connect %s: %w", session.ErrLinkUnavailable, p.Address(), err)
	}

	conn, err := session.New(session.Config{
		Link:          link,
		Rand:          m.config.Rand,
		LoggerFactory: m.config.LoggerFactory,
	})
	if err != nil {
		if cerr := link.Close(); cerr != nil && m.log != nil {
			m.log.Warnf("closing link to %s: %v", p.Address(), cerr)
		}
		return 0, err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && m.log != nil {
			m.log.Warnf("closing link to %s: %v", p.Address(), cerr)
		}
	}()

	if err := conn.Handshake(ctx, h); err != nil {
		return 0, err
	}

	ack, err := conn.Call(ctx, frame.TypeCommand, c.Payload, frame.TypeCommandAck)
	if err != nil {
		return 0, err
	}
	return parseAck(ack)
}

// parseAck decodes a decrypted CommandAck payload. The result byte is
// classified first; only a success must carry the activation seconds.
func parseAck(ack []byte) (time.Duration, error) {
	if len(ack) == 0 {
		return 0, fmt.Errorf("%w: empty command ack", session.ErrProtocolDesync)
	}

	switch ack[0] {
	case resultSuccess:
		if len(ack) < ackSize {
			return 0, fmt.Errorf("%w: command ack is %d bytes, want %d", session.ErrProtocolDesync, len(ack), ackSize)
		}
		seconds := binary.LittleEndian.Uint16(ack[1:ackSize])
		return time.Duration(seconds) * time.Second, nil
	case resultAccessDenied:
		return 0, ErrAccessDenied
	default:
		return 0, fmt.Errorf("%w: 0x%02X", ErrUnexpectedResult, ack[0])
	}
}

// Discover scans for the given devices and returns the usable ones, keyed by
// device ID. Devices that are not installed cylinders, or are in DFU mode, are
// logged and left out.
func (m *Manager) Discover(ctx context.Context, deviceIDs []uint64) (map[uint64]*discovery.Device, error) {
	if m.resolver == nil {
		return nil, discovery.ErrNoScanner
	}

	found, err := m.resolver.Discover(ctx, deviceIDs)
	if err != nil {
		return nil, err
	}

	usable := make(map[uint64]*discovery.Device, len(found))
	for id, d := range found {
		if err := d.Info.Usable(); err != nil {
			if m.log != nil {
				m.log.Warnf("skipping discovered device %d: %v", id, err)
			}
			continue
		}
		if m.log != nil {
			m.log.Infof("discovered device %d with %d dBm RSSI", id, d.RSSI)
		}
		usable[id] = d
	}

	if m.log != nil {
		for _, id := range deviceIDs {
			if _, ok := found[id]; !ok {
				m.log.Warnf("unable to discover device %d", id)
			}
		}
	}
	return usable, nil
}

func (m *Manager) begin(deviceID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activating[deviceID] {
		return false
	}
	m.activating[deviceID] = true
	return true
}

func (m *Manager) end(deviceID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.activating, deviceID)
}
