package radio

import "sync"

// StubDriver is a host-side radio for tests. Frames pushed with InjectRx are
// delivered synchronously, as the receive interrupt would.
type StubDriver struct {
	receiver

	mu      sync.Mutex
	started bool
}

func NewStubDriver() *StubDriver {
	return &StubDriver{}
}

func (d *StubDriver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return ErrAlreadyStarted
	}
	d.started = true
	return nil
}

func (d *StubDriver) SetPromiscuous(enabled bool) error {
	d.promiscuous.Store(enabled)
	return nil
}

func (d *StubDriver) RegisterReceiveCallback(fn func([]byte)) error {
	return d.register(fn)
}

func (d *StubDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return ErrNotStarted
	}
	d.started = false
	return nil
}

func (d *StubDriver) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// InjectRx feeds one frame through the callback and reports whether it was delivered.
func (d *StubDriver) InjectRx(frame []byte) bool {
	if !d.Started() {
		return false
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)
	return d.deliver(buf)
}
