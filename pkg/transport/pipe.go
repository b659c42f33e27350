package transport

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
)

// readBufferSize bounds a single notification chunk read from the pipe.
const readBufferSize = 4096

// NetworkCondition configures radio behaviour simulation on a Pipe.
// Use this to exercise frame reassembly and timeouts.
type NetworkCondition struct {
	// MaxChunkSize splits every write into chunks of at most this many bytes,
	// the way a small ATT MTU fragments notifications. Zero disables splitting.
	MaxChunkSize int

	// DelayMin is the minimum delay added before each chunk.
	DelayMin time.Duration

	// DelayMax is the maximum delay added before each chunk.
	// Actual delay is uniformly distributed between DelayMin and DelayMax.
	DelayMax time.Duration

	// ConnectLatency delays PipePeripheral.Connect.
	ConnectLatency time.Duration
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor delivers chunks.
	// Default: 1ms
	ProcessInterval time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe is an in-memory radio link between a central (the client) and a
// peripheral (usually the device emulator). It wraps pion's test.Bridge.
//
// The central side is exposed as a Peripheral/Link pair, the device side as a
// plain net.Conn. A Pipe carries exactly one link lifetime: once the central
// link is closed or dropped, the pipe cannot be reconnected.
type Pipe struct {
	bridge *test.Bridge
	log    logging.LeveledLogger

	mu              sync.RWMutex
	condition       NetworkCondition
	rng             *rand.Rand
	closed          bool
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup

	link *PipeLink
	used bool
}

// NewPipe creates a new pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}

	if config.ProcessInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}
	if config.LoggerFactory != nil {
		p.log = config.LoggerFactory.NewLogger("bold-transport")
	}

	if p.autoProcess {
		p.startAutoProcess()
	}

	return p
}

// startAutoProcess starts the background delivery goroutine.
func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				for p.bridge.Tick() > 0 {
				}
			}
		}
	}()
}

// SetAutoProcess enables or disables automatic delivery.
// When disabled, call Tick or Process manually.
func (p *Pipe) SetAutoProcess(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.autoProcess == enabled {
		return
	}

	p.autoProcess = enabled

	if enabled {
		p.stopCh = make(chan struct{})
		p.startAutoProcess()
	} else {
		close(p.stopCh)
		p.wg.Wait()
	}
}

// AutoProcess returns whether auto-processing is enabled.
func (p *Pipe) AutoProcess() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoProcess
}

// SetCondition configures radio condition simulation for both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Condition returns the current condition configuration.
func (p *Pipe) Condition() NetworkCondition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.condition
}

// Tick delivers one chunk in each direction (if available).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued chunks.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// DeviceConn returns the peripheral end of the pipe.
// Writes are subject to the configured NetworkCondition.
func (p *Pipe) DeviceConn() net.Conn {
	return &pipeConn{Conn: p.bridge.GetConn1(), pipe: p}
}

// Peripheral returns a connectable handle for the central end of the pipe.
func (p *Pipe) Peripheral(address string) *PipePeripheral {
	return &PipePeripheral{pipe: p, address: address}
}

// Drop simulates the peripheral going out of range: the central link is
// reported as disconnected and the device end is closed.
func (p *Pipe) Drop() {
	p.mu.RLock()
	link := p.link
	p.mu.RUnlock()

	if p.log != nil {
		p.log.Debug("dropping pipe link")
	}
	if link != nil {
		link.markDown()
	}
	p.bridge.GetConn1().Close()
}

// Close closes both ends and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	link := p.link
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	if link != nil {
		link.Close()
	}

	// Let the bridge hand out EOF to blocked readers before stopping.
	p.bridge.GetConn1().Close()
	p.Process()
	p.wg.Wait()
	p.Process()
	return nil
}

// write sends b on conn, fragmenting and delaying per the current condition.
func (p *Pipe) write(conn net.Conn, b []byte) (int, error) {
	p.mu.RLock()
	cond := p.condition
	rng := p.rng
	p.mu.RUnlock()

	chunk := cond.MaxChunkSize
	if chunk <= 0 {
		chunk = len(b)
	}

	written := 0
	for written < len(b) || len(b) == 0 {
		end := written + chunk
		if end > len(b) {
			end = len(b)
		}

		if cond.DelayMax > 0 {
			delay := cond.DelayMin
			if cond.DelayMax > cond.DelayMin {
				p.mu.Lock()
				delay += time.Duration(rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
				p.mu.Unlock()
			}
			time.Sleep(delay)
		}

		if _, err := conn.Write(b[written:end]); err != nil {
			return written, err
		}
		written = end

		if len(b) == 0 {
			break
		}
	}
	return written, nil
}

// acquire hands out the central link, at most once per pipe.
func (p *Pipe) acquire() (*PipeLink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if p.link != nil {
		return nil, ErrAlreadyConnected
	}
	if p.used {
		return nil, ErrLinkUnavailable
	}

	p.used = true
	p.link = &PipeLink{
		pipe: p,
		conn: p.bridge.GetConn0(),
		down: make(chan struct{}),
	}
	return p.link, nil
}

// release forgets the central link after it closed.
func (p *Pipe) release(l *PipeLink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.link == l {
		p.link = nil
	}
}

// pipeConn applies the pipe's conditions to writes on the device end.
type pipeConn struct {
	net.Conn
	pipe *Pipe
}

func (c *pipeConn) Write(b []byte) (int, error) {
	return c.pipe.write(c.Conn, b)
}

// PipePeripheral implements Peripheral for the central end of a Pipe.
type PipePeripheral struct {
	pipe    *Pipe
	address string
}

// Address returns the configured address.
func (pp *PipePeripheral) Address() string {
	return pp.address
}

// Connect returns the pipe's central link after the configured latency.
func (pp *PipePeripheral) Connect(ctx context.Context) (Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if latency := pp.pipe.Condition().ConnectLatency; latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return pp.pipe.acquire()
}

// Verify PipePeripheral implements Peripheral.
var _ Peripheral = (*PipePeripheral)(nil)

// PipeLink implements Link over the central end of a Pipe.
type PipeLink struct {
	pipe *Pipe
	conn net.Conn

	mu         sync.Mutex
	handler    NotificationHandler
	downOnce   sync.Once
	down       chan struct{}
	closeOnce  sync.Once
	closeCount int
}

// Write sends bytes to the device end.
func (l *PipeLink) Write(b []byte) error {
	select {
	case <-l.down:
		return ErrClosed
	default:
	}

	if _, err := l.pipe.write(l.conn, b); err != nil {
		return ErrSendFailed
	}
	return nil
}

// Subscribe registers h and starts delivering notification chunks.
func (l *PipeLink) Subscribe(h NotificationHandler) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handler != nil {
		return ErrAlreadySubscribed
	}
	l.handler = h

	go l.readLoop(h)
	return nil
}

// readLoop delivers chunks until the pipe end reports EOF or the link drops.
func (l *PipeLink) readLoop(h NotificationHandler) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := l.conn.Read(buf)
		if err != nil {
			l.markDown()
			return
		}

		select {
		case <-l.down:
			return
		default:
		}

		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		h(chunk)
	}
}

// Disconnected returns a channel closed when the link goes down.
func (l *PipeLink) Disconnected() <-chan struct{} {
	return l.down
}

// Close closes the central end. Safe to call more than once.
func (l *PipeLink) Close() error {
	l.closeOnce.Do(func() {
		l.conn.Close()
		l.markDown()
		l.pipe.release(l)

		l.mu.Lock()
		l.closeCount++
		l.mu.Unlock()
	})
	return nil
}

// CloseCount reports how many times the link was actually closed (0 or 1).
func (l *PipeLink) CloseCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeCount
}

func (l *PipeLink) markDown() {
	l.downOnce.Do(func() {
		close(l.down)
	})
}

// Verify PipeLink implements Link.
var _ Link = (*PipeLink)(nil)
