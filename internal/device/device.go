package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skobkin/macsniff/internal/bus"
	"github.com/skobkin/macsniff/internal/button"
	"github.com/skobkin/macsniff/internal/capture"
	"github.com/skobkin/macsniff/internal/display"
	"github.com/skobkin/macsniff/internal/dump"
	"github.com/skobkin/macsniff/internal/events"
	"github.com/skobkin/macsniff/internal/menu"
	"github.com/skobkin/macsniff/internal/radio"
	"github.com/skobkin/macsniff/internal/scan"
	"github.com/skobkin/macsniff/internal/storage"
)

const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultResultHold   = 2 * time.Second
)

type Config struct {
	Scan         scan.Config
	Dump         dump.Config
	PollInterval time.Duration
	// ResultHold keeps an action's last screen visible before the device sleeps.
	ResultHold time.Duration
	// LiveAppend appends each new address to the scan file during the session
	// instead of writing the whole set at the end.
	LiveAppend bool
}

func DefaultConfig() Config {
	return Config{
		Scan:         scan.DefaultConfig(),
		Dump:         dump.DefaultConfig(),
		PollInterval: DefaultPollInterval,
		ResultHold:   DefaultResultHold,
	}
}

// Deps are the collaborators the composition root hands to the device. Pin
// may be nil when only edge interrupts feed the debouncer.
type Deps struct {
	Logger  *slog.Logger
	Display display.Display
	Radio   radio.Driver
	Ingest  *capture.Ingest
	Store   *storage.Store
	Button  *button.Debouncer
	Pin     button.Pin
	Menu    *menu.State
	DumpOut dump.LineWriter
	Bus     bus.Publisher
	Clock   scan.Clock
}

// Device is the single cooperative loop. It owns the menu phase and runs the
// chosen action to completion, then parks in the sleeping state.
type Device struct {
	logger  *slog.Logger
	cfg     Config
	display display.Display
	radio   radio.Driver
	ingest  *capture.Ingest
	store   *storage.Store
	button  *button.Debouncer
	pin     button.Pin
	menu    *menu.State
	dumpOut dump.LineWriter
	pub     bus.Publisher
	clock   scan.Clock

	radioOn bool
}

func New(deps Deps, cfg Config) (*Device, error) {
	switch {
	case deps.Display == nil:
		return nil, errors.New("device: display is required")
	case deps.Radio == nil:
		return nil, errors.New("device: radio is required")
	case deps.Ingest == nil:
		return nil, errors.New("device: capture ingest is required")
	case deps.Store == nil:
		return nil, errors.New("device: store is required")
	case deps.Button == nil:
		return nil, errors.New("device: button is required")
	case deps.Menu == nil:
		return nil, errors.New("device: menu is required")
	case deps.DumpOut == nil:
		return nil, errors.New("device: dump output is required")
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Bus == nil {
		deps.Bus = bus.Discard{}
	}
	if deps.Clock == nil {
		deps.Clock = scan.SystemClock()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ResultHold < 0 {
		cfg.ResultHold = 0
	}

	return &Device{
		logger:  deps.Logger,
		cfg:     cfg,
		display: deps.Display,
		radio:   deps.Radio,
		ingest:  deps.Ingest,
		store:   deps.Store,
		button:  deps.Button,
		pin:     deps.Pin,
		menu:    deps.Menu,
		dumpOut: deps.DumpOut,
		pub:     deps.Bus,
		clock:   deps.Clock,
	}, nil
}

// Run is one wake cycle: menu, action, sleep. The returned error is the
// fatal condition that ended the cycle, if any; the device sleeps either way.
func (d *Device) Run(ctx context.Context) error {
	d.phase(events.PhaseBoot)

	return d.finish(d.cycle(ctx))
}

// RunAction skips the menu and runs opt directly, then sleeps like Run.
func (d *Device) RunAction(ctx context.Context, opt menu.Option) error {
	d.phase(events.PhaseBoot)

	return d.finish(d.Execute(ctx, opt))
}

func (d *Device) finish(err error) error {
	if err != nil {
		d.logger.Error("device cycle failed", "error", err)
		d.pub.Publish(events.TopicDeviceFailure, events.DeviceFailure{Err: err.Error(), Fatal: true})
	}

	if sleepErr := d.enterSleep(); sleepErr != nil {
		err = errors.Join(err, sleepErr)
	}

	return err
}

func (d *Device) cycle(ctx context.Context) error {
	// A press made while asleep must not drive the new menu.
	if err := d.button.Reset(); err != nil {
		return err
	}
	if err := d.menu.Reset(); err != nil {
		return err
	}

	opt, err := d.SelectOption(ctx)
	if err != nil {
		return err
	}

	return d.Execute(ctx, opt)
}

// SelectOption runs the menu phase until a long press confirms the selection.
func (d *Device) SelectOption(ctx context.Context) (menu.Option, error) {
	d.phase(events.PhaseMenu)
	if err := d.renderMenu(); err != nil {
		return "", err
	}

	for {
		ev, err := d.pollButton()
		if err != nil {
			return "", err
		}

		switch ev {
		case button.ShortPress:
			if err := d.menu.Apply(ev); err != nil {
				return "", err
			}
			if err := d.renderMenu(); err != nil {
				return "", err
			}
		case button.LongPress:
			opt, err := d.menu.Selected()
			if err != nil {
				return "", err
			}
			d.logger.Info("menu option confirmed", "option", opt)
			return opt, nil
		}

		if !d.clock.Sleep(ctx, d.cfg.PollInterval) {
			return "", ctx.Err()
		}
	}
}

// Execute runs one action to completion.
func (d *Device) Execute(ctx context.Context, opt menu.Option) error {
	var err error
	switch opt {
	case menu.OptionScan:
		d.phase(events.PhaseScan)
		err = d.scanAndSave(ctx)
	case menu.OptionDump:
		d.phase(events.PhaseDump)
		err = d.dumpAll(ctx)
	case menu.OptionSize:
		d.phase(events.PhaseSize)
		err = d.reportSize(ctx)
	case menu.OptionExit:
		d.logger.Info("exit selected")
		return nil
	default:
		return fmt.Errorf("unsupported menu option: %q", opt)
	}
	if err != nil {
		return err
	}

	d.clock.Sleep(ctx, d.cfg.ResultHold)

	return nil
}

// pollButton samples the pin when one is wired and takes the pending event.
func (d *Device) pollButton() (button.Event, error) {
	if d.pin != nil {
		if err := d.button.Poll(d.pin.Pressed()); err != nil {
			return button.None, err
		}
	}

	ev, err := d.button.Take()
	if err != nil {
		return button.None, err
	}
	if ev != button.None {
		d.pub.Publish(events.TopicButton, events.ButtonEvent{Event: ev, At: d.clock.Now()})
	}

	return ev, nil
}

func (d *Device) renderMenu() error {
	items, err := d.menu.Items()
	if err != nil {
		return err
	}
	if err := display.ShowMenu(d.display, items); err != nil {
		return fmt.Errorf("render menu: %w", err)
	}
	d.pub.Publish(events.TopicMenu, events.MenuChanged{Items: items})

	return nil
}

func (d *Device) enterSleep() error {
	var errs []error
	if d.radioOn {
		if err := d.stopRadio(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := display.ShowSleeping(d.display); err != nil {
		errs = append(errs, fmt.Errorf("render sleep screen: %w", err))
	}
	d.phase(events.PhaseSleeping)
	d.logger.Info("device sleeping")

	return errors.Join(errs...)
}

func (d *Device) phase(p events.Phase) {
	d.logger.Debug("phase", "phase", p)
	d.pub.Publish(events.TopicPhase, events.PhaseChange{Phase: p, At: d.clock.Now()})
}

// showMessage renders a result screen. A failing panel is logged, not fatal,
// once the device is past initialisation.
func (d *Device) showMessage(lines ...string) {
	if err := display.ShowMessage(d.display, lines...); err != nil {
		d.logger.Warn("render message failed", "error", err)
	}
}
