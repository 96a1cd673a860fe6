package button

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDebouncer(t *testing.T) (*Debouncer, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewDebouncer(logger, 2*time.Second, clk.Now), clk
}

func mustTake(t *testing.T, d *Debouncer) Event {
	t.Helper()
	ev, err := d.Take()
	if err != nil {
		t.Fatalf("take: %v", err)
	}

	return ev
}

func TestEdgePathShortPressPerCycle(t *testing.T) {
	d, clk := newTestDebouncer(t)

	for i := 0; i < 5; i++ {
		_ = d.HandleEdge(true)
		clk.Advance(300 * time.Millisecond)
		_ = d.HandleEdge(false)
		if got := mustTake(t, d); got != ShortPress {
			t.Fatalf("cycle %d: got %v want %v", i, got, ShortPress)
		}
		clk.Advance(100 * time.Millisecond)
	}
}

func TestPollingPathShortPressPerCycle(t *testing.T) {
	d, clk := newTestDebouncer(t)

	for i := 0; i < 3; i++ {
		for tick := 0; tick < 10; tick++ {
			_ = d.Poll(true)
			clk.Advance(50 * time.Millisecond)
		}
		_ = d.Poll(false)
		_ = d.Poll(false)
		if got := mustTake(t, d); got != ShortPress {
			t.Fatalf("cycle %d: got %v want %v", i, got, ShortPress)
		}
	}
}

func TestEdgeAndPollingDoNotDoubleFire(t *testing.T) {
	d, clk := newTestDebouncer(t)

	_ = d.HandleEdge(true)
	_ = d.Poll(true)
	clk.Advance(400 * time.Millisecond)
	_ = d.Poll(true)
	_ = d.HandleEdge(false)
	_ = d.Poll(false)

	if got := mustTake(t, d); got != ShortPress {
		t.Fatalf("first take: got %v want %v", got, ShortPress)
	}
	if got := mustTake(t, d); got != None {
		t.Fatalf("second take: got %v want %v", got, None)
	}
}

func TestLongPressOnReleaseViaEdges(t *testing.T) {
	d, clk := newTestDebouncer(t)

	_ = d.HandleEdge(true)
	clk.Advance(2500 * time.Millisecond)
	_ = d.HandleEdge(false)

	if got := mustTake(t, d); got != LongPress {
		t.Fatalf("got %v want %v", got, LongPress)
	}
	if got := d.LastDuration(); got != 2500*time.Millisecond {
		t.Fatalf("last duration: got %v want 2.5s", got)
	}
}

func TestLongPressWhileHeldHasNoTrailingShortPress(t *testing.T) {
	d, clk := newTestDebouncer(t)

	_ = d.Poll(true)
	var events []Event
	for tick := 0; tick < 100; tick++ {
		clk.Advance(50 * time.Millisecond)
		_ = d.Poll(true)
		if ev := mustTake(t, d); ev != None {
			events = append(events, ev)
		}
	}
	_ = d.HandleEdge(false)
	_ = d.Poll(false)
	if ev := mustTake(t, d); ev != None {
		events = append(events, ev)
	}

	if len(events) != 1 || events[0] != LongPress {
		t.Fatalf("events: got %v want [long_press]", events)
	}
}

func TestLongPressFiresAtThresholdWhileHeld(t *testing.T) {
	d, clk := newTestDebouncer(t)

	_ = d.Poll(true)
	clk.Advance(1999 * time.Millisecond)
	_ = d.Poll(true)
	if got := mustTake(t, d); got != None {
		t.Fatalf("before threshold: got %v want none", got)
	}
	clk.Advance(time.Millisecond)
	_ = d.Poll(true)
	if got := mustTake(t, d); got != LongPress {
		t.Fatalf("at threshold: got %v want %v", got, LongPress)
	}
}

func TestTakeClearsPendingEvent(t *testing.T) {
	d, clk := newTestDebouncer(t)

	_ = d.HandleEdge(true)
	clk.Advance(100 * time.Millisecond)
	_ = d.HandleEdge(false)

	first := mustTake(t, d)
	second := mustTake(t, d)
	if first != ShortPress || second != None {
		t.Fatalf("got (%v, %v) want (short_press, none)", first, second)
	}
}

func TestVeryShortPressIsKeptByDefault(t *testing.T) {
	d, clk := newTestDebouncer(t)

	_ = d.HandleEdge(true)
	clk.Advance(15 * time.Millisecond)
	_ = d.HandleEdge(false)

	if got := mustTake(t, d); got != ShortPress {
		t.Fatalf("15ms press: got %v want %v", got, ShortPress)
	}

	_ = d.Poll(true)
	clk.Advance(time.Millisecond)
	_ = d.Poll(false)
	if got := mustTake(t, d); got != ShortPress {
		t.Fatalf("1ms polled press: got %v want %v", got, ShortPress)
	}
}

func TestGlitchFilterDropsBounce(t *testing.T) {
	d, clk := newTestDebouncer(t)
	d.SetGlitchFilter(20 * time.Millisecond)

	_ = d.HandleEdge(true)
	clk.Advance(5 * time.Millisecond)
	_ = d.HandleEdge(false)
	clk.Advance(3 * time.Millisecond)
	_ = d.HandleEdge(true)
	clk.Advance(200 * time.Millisecond)
	_ = d.HandleEdge(false)

	if got := mustTake(t, d); got != ShortPress {
		t.Fatalf("got %v want %v", got, ShortPress)
	}
	if got := d.LastDuration(); got != 200*time.Millisecond {
		t.Fatalf("last duration: got %v want 200ms", got)
	}
}

func TestResetDropsPendingEventOnly(t *testing.T) {
	d, clk := newTestDebouncer(t)

	_ = d.HandleEdge(true)
	clk.Advance(100 * time.Millisecond)
	_ = d.HandleEdge(false)
	_ = d.HandleEdge(true)

	if err := d.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := mustTake(t, d); got != None {
		t.Fatalf("after reset: got %v want none", got)
	}

	clk.Advance(300 * time.Millisecond)
	_ = d.HandleEdge(false)
	if got := mustTake(t, d); got != ShortPress {
		t.Fatalf("press spanning reset: got %v want %v", got, ShortPress)
	}
}

func TestReleaseWithoutPressIsIgnored(t *testing.T) {
	d, _ := newTestDebouncer(t)

	_ = d.HandleEdge(false)
	_ = d.Poll(false)
	if got := mustTake(t, d); got != None {
		t.Fatalf("got %v want none", got)
	}
}

func TestPanicInsideUpdateCorruptsState(t *testing.T) {
	d, _ := newTestDebouncer(t)
	d.now = func() time.Time { panic("clock failure") }

	func() {
		defer func() { _ = recover() }()
		_ = d.HandleEdge(true)
	}()

	if _, err := d.Take(); !errors.Is(err, ErrStateCorrupted) {
		t.Fatalf("take after panic: got %v want %v", err, ErrStateCorrupted)
	}
	if err := d.Poll(false); !errors.Is(err, ErrStateCorrupted) {
		t.Fatalf("poll after panic: got %v want %v", err, ErrStateCorrupted)
	}
}

func TestEventString(t *testing.T) {
	cases := map[Event]string{None: "none", ShortPress: "short_press", LongPress: "long_press"}
	for ev, want := range cases {
		if got := ev.String(); got != want {
			t.Fatalf("String(%d): got %q want %q", ev, got, want)
		}
	}
}
