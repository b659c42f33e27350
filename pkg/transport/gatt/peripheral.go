package gatt

import (
	"context"
	"fmt"
	"sync"

	"github.com/backkem/bold/pkg/transport"
	"github.com/go-ble/ble"
	"github.com/pion/logging"
)

// Peripheral is a cylinder reachable through a ble.Device.
// At most one Link is open per Peripheral at a time.
type Peripheral struct {
	device ble.Device
	addr   ble.Addr
	logf   logging.LoggerFactory
	log    logging.LeveledLogger

	mu   sync.Mutex
	link *Link
}

// NewPeripheral returns a Peripheral for addr on device.
func NewPeripheral(device ble.Device, addr ble.Addr, loggerFactory logging.LoggerFactory) *Peripheral {
	p := &Peripheral{
		device: device,
		addr:   addr,
		logf:   loggerFactory,
	}
	if loggerFactory != nil {
		p.log = loggerFactory.NewLogger("bold-gatt")
	}
	return p
}

// Address returns the peer address.
func (p *Peripheral) Address() string {
	return p.addr.String()
}

// Connect dials the peripheral, discovers its profile, locates the UART
// characteristics and negotiates the MTU.
func (p *Peripheral) Connect(ctx context.Context) (transport.Link, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.link != nil {
		return nil, transport.ErrAlreadyConnected
	}
	if p.device == nil {
		return nil, ErrNoDevice
	}

	client, err := p.device.Dial(ctx, p.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", transport.ErrLinkUnavailable, p.Address(), err)
	}

	rx, tx, err := p.setup(ctx, client)
	if err != nil {
		if cerr := client.CancelConnection(); cerr != nil && p.log != nil {
			p.log.Warnf("cancel connection to %s: %v", p.Address(), cerr)
		}
		return nil, err
	}

	chunk := ble.DefaultMTU - attHeaderSize
	if mtu, err := client.ExchangeMTU(ble.MaxMTU); err != nil {
		if p.log != nil {
			p.log.Debugf("mtu exchange with %s failed, using default: %v", p.Address(), err)
		}
	} else if mtu > attHeaderSize {
		chunk = mtu - attHeaderSize
	}

	p.link = newLink(client, rx, tx, chunk, p.logf, p.release)
	if p.log != nil {
		p.log.Debugf("connected to %s, %d byte writes", p.Address(), chunk)
	}
	return p.link, nil
}

func (p *Peripheral) setup(ctx context.Context, client ble.Client) (rx, tx *ble.Characteristic, err error) {
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: discover %s: %w", transport.ErrLinkUnavailable, p.Address(), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return findCharacteristics(profile)
}

func (p *Peripheral) release(l *Link) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.link == l {
		p.link = nil
	}
}

// Link is a connected GATT client bound to the UART characteristics.
type Link struct {
	client  ble.Client
	rx, tx  *ble.Characteristic
	chunk   int
	log     logging.LeveledLogger
	release func(*Link)

	mu         sync.Mutex
	subscribed bool

	down     chan struct{}
	downOnce sync.Once
	closed   sync.Once
	closeErr error
}

func newLink(client ble.Client, rx, tx *ble.Characteristic, chunk int, loggerFactory logging.LoggerFactory, release func(*Link)) *Link {
	l := &Link{
		client:  client,
		rx:      rx,
		tx:      tx,
		chunk:   chunk,
		release: release,
		down:    make(chan struct{}),
	}
	if loggerFactory != nil {
		l.log = loggerFactory.NewLogger("bold-gatt")
	}
	go l.watch()
	return l
}

func (l *Link) watch() {
	select {
	case <-l.client.Disconnected():
		if l.log != nil {
			l.log.Debugf("peer %s disconnected", l.client.Addr())
		}
		l.markDown()
	case <-l.down:
	}
}

// Write sends p to the RX characteristic, split into MTU sized writes.
func (l *Link) Write(p []byte) error {
	select {
	case <-l.down:
		return transport.ErrClosed
	default:
	}

	for len(p) > 0 {
		n := min(len(p), l.chunk)
		if err := l.client.WriteCharacteristic(l.rx, p[:n], false); err != nil {
			return fmt.Errorf("%w: %w", transport.ErrSendFailed, err)
		}
		p = p[n:]
	}
	return nil
}

// Subscribe enables notifications on the TX characteristic.
func (l *Link) Subscribe(h transport.NotificationHandler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subscribed {
		return transport.ErrAlreadySubscribed
	}

	indicate := l.tx.Property&ble.CharNotify == 0
	err := l.client.Subscribe(l.tx, indicate, func(b []byte) {
		h(append([]byte(nil), b...))
	})
	if err != nil {
		return fmt.Errorf("%w: subscribe: %w", transport.ErrLinkUnavailable, err)
	}
	l.subscribed = true
	return nil
}

// Disconnected returns a channel closed once the link is down.
func (l *Link) Disconnected() <-chan struct{} {
	return l.down
}

// Close cancels the connection. Only the first call talks to the device.
func (l *Link) Close() error {
	l.closed.Do(func() {
		l.markDown()
		l.closeErr = l.client.CancelConnection()
	})
	return l.closeErr
}

func (l *Link) markDown() {
	l.downOnce.Do(func() {
		close(l.down)
		if l.release != nil {
			l.release(l)
		}
	})
}
