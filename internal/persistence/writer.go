package persistence

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

var ErrWriterQueueFull = errors.New("archive writer queue is full")

type writeCmd struct {
	name string
	fn   func(context.Context) error
}

// WriterQueue serialises archive writes from concurrent producers, such as
// the directory watcher, onto one goroutine and retries failed writes.
type WriterQueue struct {
	logger     *slog.Logger
	queue      chan writeCmd
	retryDelay time.Duration
	done       chan struct{}
	failures   atomic.Int64
}

func NewWriterQueue(logger *slog.Logger, capacity int) *WriterQueue {
	if capacity <= 0 {
		capacity = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WriterQueue{
		logger:     logger,
		queue:      make(chan writeCmd, capacity),
		retryDelay: 300 * time.Millisecond,
		done:       make(chan struct{}),
	}
}

// Enqueue never blocks the producer.
func (w *WriterQueue) Enqueue(name string, fn func(context.Context) error) error {
	select {
	case w.queue <- writeCmd{name: name, fn: fn}:
		return nil
	default:
		return ErrWriterQueueFull
	}
}

// Start runs the worker until ctx ends. Done is closed once it has returned.
func (w *WriterQueue) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case cmd := <-w.queue:
				w.runWithRetry(ctx, cmd)
			}
		}
	}()
}

func (w *WriterQueue) Done() <-chan struct{} {
	return w.done
}

// Failures counts writes that were given up after the last attempt.
func (w *WriterQueue) Failures() int64 {
	return w.failures.Load()
}

func (w *WriterQueue) runWithRetry(ctx context.Context, cmd writeCmd) {
	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := cmd.fn(ctx)
		if err == nil {
			return
		}
		w.logger.Error("archive write failed", "cmd", cmd.name, "attempt", attempt, "error", err)
		if attempt == maxAttempts {
			w.failures.Add(1)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * w.retryDelay):
		}
	}
}
