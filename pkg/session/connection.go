package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/backkem/bold/pkg/crypto"
	"github.com/backkem/bold/pkg/frame"
	"github.com/backkem/bold/pkg/transport"
	"github.com/pion/logging"
)

// Config configures a Connection.
type Config struct {
	// Link is the connected physical link. Required.
	Link transport.Link

	// Rand is the source for the client challenge.
	// Default: crypto/rand.Reader
	Rand io.Reader

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// callResult is what a pending call resolves with.
type callResult struct {
	payload []byte
	err     error
}

// pendingCall is the single in-flight request waiting for its reply.
type pendingCall struct {
	request frame.Type
	reply   frame.Type
	result  chan callResult
	once    sync.Once
}

func newPendingCall(request, reply frame.Type) *pendingCall {
	return &pendingCall{
		request: request,
		reply:   reply,
		result:  make(chan callResult, 1),
	}
}

// resolve delivers the outcome. Only the first call has any effect.
func (p *pendingCall) resolve(payload []byte, err error) {
	p.once.Do(func() {
		p.result <- callResult{payload: payload, err: err}
	})
}

// Connection is an authenticated, request/reply session over one link.
type Connection struct {
	link transport.Link
	rand io.Reader
	log  logging.LeveledLogger

	mu      sync.Mutex
	state   State
	decoder *frame.Decoder
	cryptor *crypto.Cryptor
	pending *pendingCall
	closed  bool
	cause   error
	done    chan struct{}

	closeOnce sync.Once
}

// New wraps a connected link, subscribes to its notifications and returns a
// connection in StateConnected.
func New(config Config) (*Connection, error) {
	if config.Link == nil {
		return nil, ErrLinkUnavailable
	}

	c := &Connection{
		link:    config.Link,
		rand:    config.Rand,
		state:   StateConnected,
		decoder: frame.NewDecoder(),
		done:    make(chan struct{}),
	}
	if c.rand == nil {
		c.rand = rand.Reader
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("bold-session")
	}

	if err := c.link.Subscribe(c.handleNotification); err != nil {
		return nil, fmt.Errorf("%w: subscribe: %w", ErrLinkUnavailable, err)
	}

	go c.watchLink()
	return c, nil
}

// State returns the current connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done returns a channel closed once the connection reaches StateDisconnected.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Call sends one frame and waits for the reply of type reply.
//
// Handshake types travel in the clear; every other request payload is
// encrypted and the reply payload decrypted with the session cryptor. Event
// frames arriving meanwhile are ignored. Device control frames, unexpected
// frame types, link loss and ctx expiry fail the call and close the connection.
func (c *Connection) Call(ctx context.Context, t frame.Type, payload []byte, reply frame.Type) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.pending != nil {
		c.mu.Unlock()
		return nil, ErrCallInProgress
	}
	if !t.IsHandshake() && c.cryptor == nil {
		c.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		terr := timeoutError(err)
		c.shutdown(terr)
		return nil, terr
	}

	// Encode before encrypting: a rejected frame must not advance the counter.
	wire, err := frame.New(t, payload).Encode()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if !t.IsHandshake() {
		copy(wire[frame.HeaderSize:], c.cryptor.Process(payload))
	}

	// Register before writing so a fast reply cannot be lost.
	p := newPendingCall(t, reply)
	c.pending = p
	if c.state == StateAuthenticated {
		c.state = StateBusy
	}
	c.mu.Unlock()

	if c.log != nil {
		c.log.Tracef("call %s (%d bytes), awaiting %s", t, len(payload), reply)
	}

	if err := c.link.Write(wire); err != nil {
		c.abort(p, fmt.Errorf("%w: write %s: %w", ErrLinkUnavailable, t, err))
	}

	select {
	case r := <-p.result:
		return r.payload, r.err
	case <-ctx.Done():
		c.abort(p, timeoutError(ctx.Err()))
		r := <-p.result
		return r.payload, r.err
	}
}

// Close tears the connection down. Safe to call more than once; only the
// first call closes the link and returns its error.
func (c *Connection) Close() error {
	return c.shutdown(ErrClosed)
}

// abort fails p with cause and closes the connection, unless p already resolved.
func (c *Connection) abort(p *pendingCall, cause error) {
	c.mu.Lock()
	if c.pending != p {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()

	p.resolve(nil, cause)
	c.shutdown(cause)
}

// shutdown moves to StateDisconnected, rejects any pending call with cause,
// discards cryptor and partial frames, and closes the link. Concurrent callers
// wait until the first has finished; only the first gets the link close error.
func (c *Connection) shutdown(cause error) error {
	var err error
	c.closeOnce.Do(func() {
		err = c.teardown(cause)
	})
	return err
}

func (c *Connection) teardown(cause error) error {
	c.mu.Lock()
	c.closed = true
	c.cause = cause
	prev := c.state
	c.state = StateDisconnected
	p := c.pending
	c.pending = nil
	c.cryptor = nil
	c.decoder.Reset()
	close(c.done)
	c.mu.Unlock()

	if c.log != nil {
		if cause == ErrClosed {
			c.log.Debugf("connection closed from state %s", prev)
		} else {
			c.log.Warnf("connection closed from state %s: %v", prev, cause)
		}
	}

	if p != nil {
		p.resolve(nil, cause)
	}

	err := c.link.Close()
	if err != nil && c.log != nil {
		c.log.Warnf("link close failed: %v", err)
	}
	return err
}

// watchLink tears the connection down if the link drops.
func (c *Connection) watchLink() {
	select {
	case <-c.link.Disconnected():
		c.shutdown(ErrLinkUnavailable)
	case <-c.done:
	}
}

// handleNotification feeds one notification chunk through the decoder and
// dispatches every completed frame.
func (c *Connection) handleNotification(chunk []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	frames := c.decoder.Write(chunk)
	c.mu.Unlock()

	for _, f := range frames {
		if err := c.dispatch(f); err != nil {
			c.shutdown(err)
			return
		}
	}
}

// dispatch routes one frame to the pending call. A non-nil return is fatal.
func (c *Connection) dispatch(f frame.Frame) error {
	if f.Type == frame.TypeEvent {
		if c.log != nil {
			c.log.Debugf("ignoring event frame (%d bytes)", len(f.Payload))
		}
		return nil
	}

	c.mu.Lock()
	p := c.pending
	if p == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: unsolicited %s", ErrProtocolDesync, f)
	}

	var (
		payload []byte
		err     error
	)
	switch {
	case f.Type == p.reply && f.Type.IsHandshake():
		payload = f.Payload
	case f.Type == p.reply && c.cryptor != nil:
		payload = c.cryptor.Process(f.Payload)
	case f.Type == frame.TypeClientBlocked:
		err = ErrClientBlocked
	case f.Type == frame.TypeHandshakeExpired:
		err = ErrHandshakeExpired
	case f.Type == frame.TypeEncryptionError:
		err = ErrEncryptionError
	default:
		err = fmt.Errorf("%w: got %s in reply to %s, want %s", ErrProtocolDesync, f.Type, p.request, p.reply)
	}

	c.pending = nil
	if err == nil && c.state == StateBusy {
		c.state = StateAuthenticated
	}
	c.mu.Unlock()

	p.resolve(payload, err)
	return err
}

func timeoutError(cause error) error {
	return fmt.Errorf("%w: %w", ErrTimeout, cause)
}
