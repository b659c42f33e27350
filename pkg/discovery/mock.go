package discovery

import (
	"context"
	"sync"
	"time"
)

// MockScanner replays registered advertisements for testing without a radio.
type MockScanner struct {
	mu    sync.RWMutex
	ads   []Advertisement
	delay time.Duration
	err   error
	scans int
}

// NewMockScanner creates a new mock scanner.
func NewMockScanner() *MockScanner {
	return &MockScanner{}
}

// AddAdvertisement registers an advertisement to be reported on every scan.
func (m *MockScanner) AddAdvertisement(adv Advertisement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ads = append(m.ads, adv)
}

// SetDelay sets a pause before each advertisement is reported.
func (m *MockScanner) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetError makes Scan fail immediately with err.
func (m *MockScanner) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Scans returns how many times Scan was called.
func (m *MockScanner) Scans() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scans
}

// Scan implements Scanner. It reports every registered advertisement, then
// waits for ctx like a real scan would.
func (m *MockScanner) Scan(ctx context.Context, h func(Advertisement)) error {
	m.mu.Lock()
	m.scans++
	ads := make([]Advertisement, len(m.ads))
	copy(ads, m.ads)
	delay := m.delay
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return err
	}

	for _, adv := range ads {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		h(adv)
	}

	<-ctx.Done()
	return nil
}

// MockAdapter is an Adapter whose state is set by the test.
type MockAdapter struct {
	mu       sync.Mutex
	state    AdapterState
	nextID   int
	watchers map[int]func(AdapterState)
}

// NewMockAdapter creates a mock adapter in the given state.
func NewMockAdapter(state AdapterState) *MockAdapter {
	return &MockAdapter{
		state:    state,
		watchers: make(map[int]func(AdapterState)),
	}
}

// State implements Adapter.
func (m *MockAdapter) State() AdapterState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Watch implements Adapter.
func (m *MockAdapter) Watch(fn func(AdapterState)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.watchers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, id)
	}
}

// Watchers returns the number of registered watchers.
func (m *MockAdapter) Watchers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers)
}

// SetState changes the state and notifies watchers.
func (m *MockAdapter) SetState(s AdapterState) {
	m.mu.Lock()
	m.state = s
	fns := make([]func(AdapterState), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
