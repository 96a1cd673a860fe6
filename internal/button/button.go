package button

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Event is a classified button gesture.
type Event uint8

const (
	None Event = iota
	ShortPress
	LongPress
)

func (e Event) String() string {
	switch e {
	case ShortPress:
		return "short_press"
	case LongPress:
		return "long_press"
	default:
		return "none"
	}
}

const DefaultLongPressThreshold = 2000 * time.Millisecond

// ErrStateCorrupted is returned once an update panicked while holding the state lock.
var ErrStateCorrupted = errors.New("button state corrupted by an interrupted update")

// Pin is a raw active-high view of the button level, sampled by the polling path.
type Pin interface {
	Pressed() bool
}

// Debouncer turns raw press/release observations into at most one pending Event.
// Edges (HandleEdge) and level samples (Poll) may be fed concurrently; whichever
// path observes a transition first acts on it and the other sees a no-op.
type Debouncer struct {
	mu        sync.Mutex
	logger    *slog.Logger
	now       func() time.Time
	threshold time.Duration
	glitch    time.Duration

	pressed         bool
	awaitingRelease bool
	pressStart      time.Time
	lastDuration    time.Duration
	event           Event
	corrupted       bool
}

// NewDebouncer builds a debouncer. A nil clock means time.Now.
func NewDebouncer(logger *slog.Logger, threshold time.Duration, now func() time.Time) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = DefaultLongPressThreshold
	}
	if now == nil {
		now = time.Now
	}

	return &Debouncer{
		logger:    logger,
		now:       now,
		threshold: threshold,
	}
}

// SetGlitchFilter drops contact bounce: a release that follows its press faster
// than window is discarded together with that press. Zero, the default, keeps
// every press.
func (d *Debouncer) SetGlitchFilter(window time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if window < 0 {
		window = 0
	}
	d.glitch = window
}

func (d *Debouncer) Threshold() time.Duration {
	return d.threshold
}

// HandleEdge is the interrupt-path entry point. It never logs.
func (d *Debouncer) HandleEdge(pressed bool) error {
	return d.update(func() {
		if pressed {
			d.onPress()
			return
		}
		d.onRelease()
	})
}

// Poll samples the pin level once per loop tick. While the button is held past
// the threshold it fires LongPress without waiting for the release.
func (d *Debouncer) Poll(pressed bool) error {
	var fired time.Duration

	err := d.update(func() {
		if !pressed {
			d.onRelease()
			return
		}
		d.onPress()
		if !d.pressed || d.awaitingRelease || d.event != None {
			return
		}
		held := d.now().Sub(d.pressStart)
		if held < d.threshold {
			return
		}
		d.event = LongPress
		d.lastDuration = held
		d.pressed = false
		d.awaitingRelease = true
		fired = held
	})
	if err == nil && fired > 0 {
		d.logger.Info("long press detected while held", "duration_ms", fired.Milliseconds())
	}

	return err
}

// Take returns the pending event and clears the slot.
func (d *Debouncer) Take() (Event, error) {
	var ev Event
	err := d.update(func() {
		ev = d.event
		if ev != None {
			d.event = None
		}
	})

	return ev, err
}

// Reset discards a pending event. A press that is still in progress is kept.
func (d *Debouncer) Reset() error {
	return d.update(func() {
		d.event = None
	})
}

// LastDuration reports the duration of the most recently classified press.
func (d *Debouncer) LastDuration() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.lastDuration
}

func (d *Debouncer) onPress() {
	if d.pressed || d.awaitingRelease {
		return
	}
	d.pressed = true
	d.pressStart = d.now()
}

func (d *Debouncer) onRelease() {
	if d.awaitingRelease {
		d.awaitingRelease = false
		return
	}
	if !d.pressed {
		return
	}
	d.pressed = false

	held := d.now().Sub(d.pressStart)
	if held < d.glitch {
		return
	}
	d.lastDuration = held
	if held >= d.threshold {
		d.event = LongPress
		return
	}
	d.event = ShortPress
}

// update runs fn under the lock. A panic inside fn leaves the corrupted flag set,
// so every later call fails instead of trusting half-written state.
func (d *Debouncer) update(fn func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.corrupted {
		return ErrStateCorrupted
	}
	d.corrupted = true
	fn()
	d.corrupted = false

	return nil
}
