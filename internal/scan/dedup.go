package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/skobkin/macsniff/internal/bus"
	"github.com/skobkin/macsniff/internal/capture"
	"github.com/skobkin/macsniff/internal/events"
)

const (
	DefaultBudget         = 30 * time.Second
	DefaultStatusInterval = 3 * time.Second
	DefaultTick           = 10 * time.Millisecond
	DefaultBatchSize      = 8
)

// ErrSourceClosed ends a session early when the capture producer was torn down.
var ErrSourceClosed = errors.New("capture source closed")

// Source is the consumer side of the capture queue.
type Source interface {
	TryRecv() (capture.MAC, bool, error)
}

type Config struct {
	Budget         time.Duration
	StatusInterval time.Duration
	Tick           time.Duration
	BatchSize      int
}

func DefaultConfig() Config {
	return Config{
		Budget:         DefaultBudget,
		StatusInterval: DefaultStatusInterval,
		Tick:           DefaultTick,
		BatchSize:      DefaultBatchSize,
	}
}

func (c Config) withDefaults() Config {
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = DefaultStatusInterval
	}
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}

	return c
}

// Session is a time-boxed scan. It ends purely on elapsed time.
type Session struct {
	Budget    time.Duration
	StartedAt time.Time
}

func (s Session) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartedAt)
}

func (s Session) Expired(now time.Time) bool {
	return s.Elapsed(now) >= s.Budget
}

// SecondsRemaining rounds up so the display never shows 0 while time is left.
func (s Session) SecondsRemaining(now time.Time) int {
	left := s.Budget - s.Elapsed(now)
	if left <= 0 {
		return 0
	}

	return int(math.Ceil(left.Seconds()))
}

// Result is what a session leaves behind, also on early termination.
type Result struct {
	Session Session
	Set     MacSet
	Elapsed time.Duration
}

// TickFunc runs once per loop iteration before the queue is drained. The device
// loop uses it for button polling; an error ends the session.
type TickFunc func() error

// NewFunc sees every address the first time it enters the set. An error ends
// the session.
type NewFunc func(mac capture.MAC) error

// Deduplicator drains the capture queue into a MacSet inside the cooperative loop.
type Deduplicator struct {
	logger *slog.Logger
	cfg    Config
	src    Source
	pub    bus.Publisher
	clock  Clock
	onTick TickFunc
	onNew  NewFunc
}

func NewDeduplicator(logger *slog.Logger, cfg Config, src Source, pub bus.Publisher, clock Clock) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = bus.Discard{}
	}
	if clock == nil {
		clock = SystemClock()
	}

	return &Deduplicator{
		logger: logger,
		cfg:    cfg.withDefaults(),
		src:    src,
		pub:    pub,
		clock:  clock,
	}
}

// OnTick installs the per-iteration hook.
func (d *Deduplicator) OnTick(fn TickFunc) {
	d.onTick = fn
}

// OnNew installs the new-address hook.
func (d *Deduplicator) OnNew(fn NewFunc) {
	d.onNew = fn
}

// Run executes one session. On ErrSourceClosed or a hook failure the partial
// result is still returned.
func (d *Deduplicator) Run(ctx context.Context) (Result, error) {
	sess := Session{Budget: d.cfg.Budget, StartedAt: d.clock.Now()}
	res := Result{Session: sess, Set: NewMacSet()}
	lastStatus := sess.StartedAt

	d.logger.Info("scan session started", "budget", sess.Budget)
	d.publishStatus(sess, res.Set, sess.StartedAt)

	for {
		now := d.clock.Now()
		res.Elapsed = sess.Elapsed(now)
		if sess.Expired(now) {
			break
		}

		if d.onTick != nil {
			if err := d.onTick(); err != nil {
				return res, fmt.Errorf("scan tick: %w", err)
			}
		}

		if err := d.drain(res.Set); err != nil {
			d.logger.Warn("scan session ended early", "error", err, "unique", res.Set.Len())
			d.finish(res, err)
			return res, err
		}

		if now.Sub(lastStatus) >= d.cfg.StatusInterval {
			d.publishStatus(sess, res.Set, now)
			lastStatus = now
		}

		if !d.clock.Sleep(ctx, d.cfg.Tick) {
			return res, ctx.Err()
		}
	}

	d.logger.Info("scan session finished", "unique", res.Set.Len(), "elapsed", res.Elapsed)
	d.finish(res, nil)

	return res, nil
}

func (d *Deduplicator) drain(set MacSet) error {
	for i := 0; i < d.cfg.BatchSize; i++ {
		mac, ok, err := d.src.TryRecv()
		if err != nil {
			if errors.Is(err, capture.ErrQueueClosed) {
				return fmt.Errorf("%w: %w", ErrSourceClosed, err)
			}
			return fmt.Errorf("drain capture queue: %w", err)
		}
		if !ok {
			return nil
		}
		if set.Add(mac) && d.onNew != nil {
			if err := d.onNew(mac); err != nil {
				return fmt.Errorf("new address hook: %w", err)
			}
		}
	}

	return nil
}

func (d *Deduplicator) publishStatus(sess Session, set MacSet, now time.Time) {
	status := events.ScanStatus{
		SecondsRemaining: sess.SecondsRemaining(now),
		UniqueCount:      set.Len(),
	}
	if q, ok := d.src.(interface{ Len() int }); ok {
		status.Queued = q.Len()
	}
	d.pub.Publish(events.TopicScanStatus, status)
}

func (d *Deduplicator) finish(res Result, err error) {
	msg := events.ScanFinished{UniqueCount: res.Set.Len(), Elapsed: res.Elapsed}
	if err != nil {
		msg.Err = err.Error()
	}
	d.pub.Publish(events.TopicScanFinished, msg)
}
