package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skobkin/macsniff/internal/bus"
	"github.com/skobkin/macsniff/internal/button"
	"github.com/skobkin/macsniff/internal/capture"
	"github.com/skobkin/macsniff/internal/config"
	"github.com/skobkin/macsniff/internal/device"
	"github.com/skobkin/macsniff/internal/display"
	"github.com/skobkin/macsniff/internal/dump"
	"github.com/skobkin/macsniff/internal/logging"
	"github.com/skobkin/macsniff/internal/menu"
	"github.com/skobkin/macsniff/internal/radio"
	"github.com/skobkin/macsniff/internal/scan"
	"github.com/skobkin/macsniff/internal/storage"
)

// Options adjust runtime construction for a particular binary.
type Options struct {
	// ConfigPath overrides the config file under the user config dir.
	ConfigPath string
	// Console receives log output. Defaults to stdout.
	Console io.Writer
	// DumpStdout is where the stdout dump output writes. Defaults to os.Stdout.
	DumpStdout io.Writer
	// Pin is sampled every loop tick when set, e.g. by the emulator in poll-only mode.
	Pin button.Pin
	// Override is applied to the loaded config before validation, for command-line flags.
	Override func(*config.AppConfig)
}

// Runtime is the composition root of the emulated device.
type Runtime struct {
	mu sync.RWMutex

	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	Registry   *prometheus.Registry
	Metrics    *capture.Metrics

	Ingest      *capture.Ingest
	Radio       radio.Driver
	Flash       *storage.DirFS
	Store       *storage.Store
	Display     *display.Framebuffer
	Button      *button.Debouncer
	Menu        *menu.State
	DumpChannel *DumpChannel
	Device      *device.Device

	dumpStdout io.Writer
}

func Initialize(parent context.Context, opts Options) (*Runtime, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, err
	}
	if opts.ConfigPath != "" {
		paths.ConfigFile = opts.ConfigPath
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.Override != nil {
		opts.Override(&cfg)
		cfg.FillMissingDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return Build(parent, paths, cfg, opts)
}

// Build wires the device from an already resolved config.
func Build(parent context.Context, paths Paths, cfg config.AppConfig, opts Options) (*Runtime, error) {
	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:        ctx,
		cancel:     cancel,
		Paths:      paths,
		Config:     cfg,
		dumpStdout: opts.DumpStdout,
	}
	if rt.dumpStdout == nil {
		rt.dumpStdout = os.Stdout
	}

	logMgr := logging.NewManager()
	if opts.Console != nil {
		logMgr.SetConsole(opts.Console)
	}
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	slog.Info("starting macsniff runtime", "version", BuildVersion(), "build_date", BuildDateYMD())

	rt.Bus = bus.New(logMgr.Logger("bus"))
	rt.Registry = prometheus.NewRegistry()
	metrics, err := capture.NewMetrics(rt.Registry)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("register capture metrics: %w", err)
	}
	rt.Metrics = metrics
	rt.Ingest = capture.NewIngest(cfg.Capture.QueueCapacity, metrics)

	drv, err := NewRadio(cfg.Radio, logMgr.Logger("radio"))
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Radio = drv

	rt.Flash = storage.NewDirFS(paths.StorageRoot(cfg.Storage.Root), cfg.Storage.CapacityBytes)
	rt.Store = storage.NewStore(rt.Flash, cfg.Storage.MountPoint, logMgr.Logger("storage"))
	rt.Display = display.NewFramebuffer()
	rt.Button = button.NewDebouncer(logMgr.Logger("button"), cfg.Button.LongPress(), nil)
	rt.Button.SetGlitchFilter(cfg.Button.Glitch())

	options, err := cfg.MenuOptions()
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Menu, err = menu.New(options)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.DumpChannel, err = NewDumpChannel(ctx, cfg.Dump, rt.dumpStdout, logMgr.Logger("dump"))
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("initialize dump channel: %w", err)
	}

	rt.Device, err = device.New(device.Deps{
		Logger:  logMgr.Logger("device"),
		Display: rt.Display,
		Radio:   rt.Radio,
		Ingest:  rt.Ingest,
		Store:   rt.Store,
		Button:  rt.Button,
		Pin:     opts.Pin,
		Menu:    rt.Menu,
		DumpOut: rt.DumpChannel,
		Bus:     rt.Bus,
		Clock:   scan.SystemClock(),
	}, DeviceConfig(cfg))
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	return rt, nil
}

// DeviceConfig maps the persisted config onto the loop's tunables.
func DeviceConfig(cfg config.AppConfig) device.Config {
	dc := device.DefaultConfig()
	dc.Scan = scan.Config{
		Budget:         cfg.Scan.Budget(),
		StatusInterval: cfg.Scan.StatusInterval(),
		Tick:           cfg.Scan.Tick(),
		BatchSize:      cfg.Capture.BatchSize,
	}
	dc.Dump = dump.Config{
		ChunkSize:  cfg.Dump.ChunkSize,
		ChunkDelay: cfg.Dump.ChunkDelay(),
	}
	dc.PollInterval = cfg.Button.PollInterval()
	dc.ResultHold = cfg.Display.ResultHold()
	dc.LiveAppend = cfg.Scan.LiveAppend

	return dc
}

// CurrentConfig returns a snapshot of the active config.
func (r *Runtime) CurrentConfig() config.AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Config
}

// SaveAndApplyConfig persists cfg and applies what can change without a
// restart: logging and the dump channel.
func (r *Runtime) SaveAndApplyConfig(cfg config.AppConfig) error {
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if err := config.Save(r.Paths.ConfigFile, cfg); err != nil {
		r.mu.Unlock()
		return err
	}
	r.Config = cfg
	r.mu.Unlock()

	if err := r.LogManager.Configure(cfg.Logging, r.Paths.LogFile); err != nil {
		return err
	}
	if r.DumpChannel != nil {
		if err := r.DumpChannel.Apply(cfg.Dump, r.dumpStdout, r.LogManager.Logger("dump")); err != nil {
			return err
		}
	}

	return nil
}

// EraseFlash removes every stored scan file and reports how many were deleted.
func (r *Runtime) EraseFlash() (int, error) {
	if r.Flash == nil {
		return 0, errors.New("flash is not initialized")
	}
	if err := r.Flash.Mount(r.Ctx); err != nil {
		return 0, err
	}
	defer func() { _ = r.Flash.Unmount() }()

	entries, err := r.Flash.ReadDir()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := r.Flash.Remove(e.Name()); err != nil {
			return removed, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		removed++
	}
	slog.Info("flash erased", "files", removed)

	return removed, nil
}

func (r *Runtime) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.Ingest != nil {
		r.Ingest.Close()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.DumpChannel != nil {
		_ = r.DumpChannel.Close()
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}
	return nil
}
