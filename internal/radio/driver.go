package radio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrNoCallback     = errors.New("receive callback not registered")
	ErrAlreadyStarted = errors.New("radio already started")
	ErrNotStarted     = errors.New("radio not started")
)

// Driver is the WiFi radio. The callback runs on the driver's own goroutine
// for every received frame and must return quickly; the buffer is only valid
// for the duration of the call.
type Driver interface {
	Start() error
	SetPromiscuous(enabled bool) error
	RegisterReceiveCallback(fn func(frame []byte)) error
	Stop() error
}

// receiver holds the state every driver shares: the registered callback and
// the promiscuous flag. Delivery reads both without locking.
type receiver struct {
	cb          atomic.Pointer[func([]byte)]
	promiscuous atomic.Bool
	delivered   atomic.Uint64
}

func (r *receiver) register(fn func([]byte)) error {
	if fn == nil {
		return ErrNoCallback
	}
	r.cb.Store(&fn)
	return nil
}

// deliver hands frame to the callback. Without promiscuous mode the radio
// only sees traffic for its own address, which a sniffer never has.
func (r *receiver) deliver(frame []byte) bool {
	if !r.promiscuous.Load() {
		return false
	}
	fn := r.cb.Load()
	if fn == nil {
		return false
	}
	(*fn)(frame)
	r.delivered.Add(1)

	return true
}

func (r *receiver) hasCallback() bool {
	return r.cb.Load() != nil
}

// Delivered counts frames handed to the callback.
func (r *receiver) Delivered() uint64 {
	return r.delivered.Load()
}

// pump runs a producer goroutine between Start and Stop.
type pump struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *pump) start(run func(ctx context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		run(ctx)
	}(p.done)

	return nil
}

func (p *pump) stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}
	cancel()
	<-done

	return nil
}

// Wait blocks until the producer goroutine returned on its own or ctx ended.
func (p *pump) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
