package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// collector gathers notification chunks from a Link.
type collector struct {
	mu     sync.Mutex
	chunks [][]byte
	notify chan struct{}
}

func newCollector() *collector {
	return &collector{notify: make(chan struct{}, 64)}
}

func (c *collector) handle(chunk []byte) {
	c.mu.Lock()
	c.chunks = append(c.chunks, chunk)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// waitBytes blocks until at least n bytes arrived or the timeout hits.
func (c *collector) waitBytes(t *testing.T, n int) ([]byte, int) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		c.mu.Lock()
		var all []byte
		for _, ch := range c.chunks {
			all = append(all, ch...)
		}
		count := len(c.chunks)
		c.mu.Unlock()

		if len(all) >= n {
			return all, count
		}

		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("timeout waiting for %d bytes, have %d", n, len(all))
		}
	}
}

func connect(t *testing.T, p *Pipe) Link {
	t.Helper()
	link, err := p.Peripheral("emulated").Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return link
}

// TestPipe_AutoProcess verifies that notifications flow without manual ticks.
func TestPipe_AutoProcess(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	if !p.AutoProcess() {
		t.Fatal("AutoProcess should be true by default")
	}

	link := connect(t, p)
	c := newCollector()
	if err := link.Subscribe(c.handle); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	device := p.DeviceConn()
	want := []byte("notification")
	if _, err := device.Write(want); err != nil {
		t.Fatalf("device Write: %v", err)
	}

	got, _ := c.waitBytes(t, len(want))
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestPipe_CentralWrite verifies writes from the central reach the device end.
func TestPipe_CentralWrite(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	link := connect(t, p)
	device := p.DeviceConn()

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, readBufferSize)
		n, err := device.Read(buf)
		if err != nil {
			done <- nil
			return
		}
		done <- buf[:n]
	}()

	want := []byte{0xA0, 0x01, 0x00, 0x42}
	if err := link.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case got := <-done:
		if !bytes.Equal(got, want) {
			t.Errorf("device read %x, want %x", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for device read")
	}
}

// TestPipe_ManualProcess verifies delivery when auto-process is disabled.
func TestPipe_ManualProcess(t *testing.T) {
	p := NewPipeWithConfig(PipeConfig{AutoProcess: false})
	defer p.Close()

	if p.AutoProcess() {
		t.Fatal("AutoProcess should be false")
	}

	link := connect(t, p)
	c := newCollector()
	link.Subscribe(c.handle)

	go p.DeviceConn().Write([]byte("manual"))

	// Give the reader and writer time to block.
	time.Sleep(10 * time.Millisecond)

	deadline := time.After(time.Second)
	for p.Process() == 0 {
		select {
		case <-deadline:
			t.Fatal("nothing to process")
		case <-time.After(time.Millisecond):
		}
	}

	got, _ := c.waitBytes(t, 6)
	if string(got) != "manual" {
		t.Errorf("got %q", got)
	}
}

// TestPipe_MaxChunkSize verifies writes are fragmented per the condition.
func TestPipe_MaxChunkSize(t *testing.T) {
	p := NewPipe()
	defer p.Close()
	p.SetCondition(NetworkCondition{MaxChunkSize: 4})

	link := connect(t, p)
	c := newCollector()
	link.Subscribe(c.handle)

	want := []byte("0123456789")
	p.DeviceConn().Write(want)

	got, count := c.waitBytes(t, len(want))
	if !bytes.Equal(got, want) {
		t.Errorf("reassembled %q, want %q", got, want)
	}
	if count != 3 {
		t.Errorf("received %d chunks, want 3", count)
	}
}

// TestPipe_Delay verifies the configured per-chunk delay is applied.
func TestPipe_Delay(t *testing.T) {
	p := NewPipe()
	defer p.Close()
	p.SetCondition(NetworkCondition{DelayMin: 20 * time.Millisecond, DelayMax: 30 * time.Millisecond})

	link := connect(t, p)
	c := newCollector()
	link.Subscribe(c.handle)

	start := time.Now()
	p.DeviceConn().Write([]byte{0x01})
	c.waitBytes(t, 1)

	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("delivered after %v, want at least 20ms", elapsed)
	}
}

func TestPipe_SubscribeTwice(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	link := connect(t, p)
	if err := link.Subscribe(func([]byte) {}); err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	if err := link.Subscribe(func([]byte) {}); err != ErrAlreadySubscribed {
		t.Errorf("second Subscribe: got %v, want ErrAlreadySubscribed", err)
	}
}

func TestPipe_SingleLinkLifetime(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	periph := p.Peripheral("emulated")
	if periph.Address() != "emulated" {
		t.Errorf("Address() = %q", periph.Address())
	}

	link, err := periph.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := periph.Connect(context.Background()); err != ErrAlreadyConnected {
		t.Errorf("second Connect: got %v, want ErrAlreadyConnected", err)
	}

	link.Close()
	if _, err := periph.Connect(context.Background()); err != ErrLinkUnavailable {
		t.Errorf("Connect after close: got %v, want ErrLinkUnavailable", err)
	}
}

func TestPipe_ConnectLatencyHonoursContext(t *testing.T) {
	p := NewPipe()
	defer p.Close()
	p.SetCondition(NetworkCondition{ConnectLatency: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Peripheral("slow").Connect(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}
}

func TestPipe_LinkClose(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	link := connect(t, p)
	pl := link.(*PipeLink)

	if err := link.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := link.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if pl.CloseCount() != 1 {
		t.Errorf("CloseCount() = %d, want 1", pl.CloseCount())
	}

	select {
	case <-link.Disconnected():
	default:
		t.Error("Disconnected() not closed after Close")
	}

	if err := link.Write([]byte{0x01}); err != ErrClosed {
		t.Errorf("Write after Close: got %v, want ErrClosed", err)
	}
}

// TestPipe_Drop verifies link loss is reported on both ends.
func TestPipe_Drop(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	link := connect(t, p)
	device := p.DeviceConn()

	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, readBufferSize)
		_, err := device.Read(buf)
		readErr <- err
	}()

	p.Drop()

	select {
	case <-link.Disconnected():
	case <-time.After(time.Second):
		t.Fatal("Disconnected() not signalled after Drop")
	}

	select {
	case err := <-readErr:
		if err != io.EOF {
			t.Errorf("device Read: got %v, want io.EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatal("device end not closed after Drop")
	}
}

func TestPipe_CloseIdempotent(t *testing.T) {
	p := NewPipe()
	connect(t, p)

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := p.Peripheral("x").Connect(context.Background()); err != ErrClosed {
		t.Errorf("Connect after pipe Close: got %v, want ErrClosed", err)
	}
}
