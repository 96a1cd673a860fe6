package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/skobkin/macsniff/internal/app"
	"github.com/skobkin/macsniff/internal/config"
	"github.com/skobkin/macsniff/internal/platform"
	"github.com/skobkin/macsniff/internal/ui"
)

type launchOptions struct {
	ConfigPath string
	PollOnly   bool
	NoWake     bool
	Radio      string
	PcapFile   string
}

func parseLaunchOptions(args []string) (launchOptions, error) {
	var opts launchOptions
	fs := flag.NewFlagSet("macsniff-gui", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.ConfigPath, "config", "", "config file path")
	fs.BoolVar(&opts.PollOnly, "poll-only", false, "feed the button only through level polling")
	fs.BoolVar(&opts.NoWake, "no-wake", false, "start asleep instead of booting into the menu")
	fs.StringVar(&opts.Radio, "radio", "", "frame source: synthetic, replay or stub")
	fs.StringVar(&opts.PcapFile, "pcap", "", "pcap file for the replay radio")
	if err := fs.Parse(args); err != nil {
		return launchOptions{}, err
	}
	if fs.NArg() > 0 {
		return launchOptions{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if opts.PcapFile != "" && opts.Radio == "" {
		opts.Radio = string(config.RadioSourceReplay)
	}

	return opts, nil
}

func (o launchOptions) override(cfg *config.AppConfig) {
	if o.Radio != "" {
		cfg.Radio.Source = config.RadioSource(o.Radio)
	}
	if o.PcapFile != "" {
		cfg.Radio.PcapFile = o.PcapFile
	}
}

func main() {
	opts, err := parseLaunchOptions(os.Args[1:])
	if err != nil {
		slog.Error("parse launch options", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	line := ui.NewButtonLine()
	line.SetPollOnly(opts.PollOnly)

	rt, err := app.Initialize(ctx, app.Options{
		ConfigPath: opts.ConfigPath,
		Pin:        line,
		Override:   opts.override,
	})
	if err != nil {
		slog.Error("initialize app runtime", "error", err)
		os.Exit(1)
	}
	line.Attach(rt.Button)

	var closeOnce sync.Once
	closeRuntime := func() {
		closeOnce.Do(func() {
			_ = rt.Close()
		})
	}
	defer closeRuntime()

	lock, err := platform.AcquireFlashLock(rt.Flash.Root())
	switch {
	case errors.Is(err, platform.ErrFlashInUse):
		slog.Error("another emulator is using this flash partition", "dir", rt.Flash.Root())
		closeRuntime()
		os.Exit(1)
	case errors.Is(err, platform.ErrLockUnsupported):
		slog.Warn("flash lock is not supported on this platform")
	case err != nil:
		slog.Error("acquire flash lock", "error", err)
		closeRuntime()
		os.Exit(1)
	default:
		defer func() { _ = lock.Release() }()
	}

	err = ui.Run(ui.Dependencies{
		Runtime:  rt,
		Line:     line,
		Actions:  platform.NewSystemActions(),
		AutoWake: !opts.NoWake,
		OnQuit: func() {
			stop()
			closeRuntime()
		},
	})
	if err != nil {
		slog.Error("run ui", "error", err)
		os.Exit(1)
	}
}
