package scan

import (
	"context"
	"time"
)

// Clock is the monotonic time source of the cooperative loop.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d and reports false when ctx ended first.
	Sleep(ctx context.Context, d time.Duration) bool
}

type systemClock struct{}

// SystemClock returns the wall clock. time.Now carries a monotonic reading,
// so elapsed checks are immune to wall-clock adjustments.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) bool {
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
