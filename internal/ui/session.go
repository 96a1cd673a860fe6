package ui

import (
	"context"
	"sync"
	"sync/atomic"
)

// deviceSession runs wake cycles of the device one at a time. A wake while a
// cycle is running is ignored, like pressing reset on a board that is busy
// booting.
type deviceSession struct {
	run func(context.Context) error

	running atomic.Bool
	wg      sync.WaitGroup

	onState func(running bool)
	onDone  func(error)
}

func newDeviceSession(run func(context.Context) error) *deviceSession {
	return &deviceSession{run: run}
}

func (s *deviceSession) Running() bool {
	return s.running.Load()
}

// Wake starts a cycle and reports whether one was started.
func (s *deviceSession) Wake(ctx context.Context) bool {
	if ctx.Err() != nil || !s.running.CompareAndSwap(false, true) {
		return false
	}
	if s.onState != nil {
		s.onState(true)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.run(ctx)
		s.running.Store(false)
		if s.onState != nil {
			s.onState(false)
		}
		if s.onDone != nil {
			s.onDone(err)
		}
	}()

	return true
}

// Wait blocks until the running cycle, if any, has returned.
func (s *deviceSession) Wait() {
	s.wg.Wait()
}
