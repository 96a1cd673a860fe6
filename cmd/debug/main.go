package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/skobkin/macsniff/internal/app"
	"github.com/skobkin/macsniff/internal/config"
	"github.com/skobkin/macsniff/internal/menu"
)

const metricsShutdownTimeout = 3 * time.Second

type runOptions struct {
	Action      menu.Option
	ConfigPath  string
	Dump        string
	SerialPort  string
	TCPHost     string
	Radio       string
	PcapFile    string
	Budget      time.Duration
	MetricsAddr string
}

func parseRunOptions(args []string, stderr io.Writer) (runOptions, error) {
	var (
		opts   runOptions
		action string
	)
	fs := flag.NewFlagSet("macsniff-debug", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&action, "action", "", "action to run without the menu: scan, dump or size")
	fs.StringVar(&opts.ConfigPath, "config", "", "config file path")
	fs.StringVar(&opts.Dump, "dump", "", "dump output: stdout, log, serial or tcp (default: stdout)")
	fs.StringVar(&opts.SerialPort, "serial-port", "", "serial port for -dump serial")
	fs.StringVar(&opts.TCPHost, "tcp", "", "host for -dump tcp")
	fs.StringVar(&opts.Radio, "radio", "", "frame source: synthetic, replay or stub")
	fs.StringVar(&opts.PcapFile, "pcap", "", "pcap file for the replay radio")
	fs.DurationVar(&opts.Budget, "budget", 0, "scan budget override, e.g. 5s")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	if err := fs.Parse(args); err != nil {
		return runOptions{}, err
	}
	if fs.NArg() > 0 {
		return runOptions{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	opt, err := menu.ParseOption(action)
	if err != nil {
		return runOptions{}, err
	}
	if opt == menu.OptionExit {
		return runOptions{}, errors.New("exit is not an action")
	}
	opts.Action = opt
	if opts.Dump == "" {
		opts.Dump = string(config.DumpOutputStdout)
	}
	if opts.PcapFile != "" && opts.Radio == "" {
		opts.Radio = string(config.RadioSourceReplay)
	}
	if opts.Budget < 0 {
		return runOptions{}, errors.New("budget must not be negative")
	}

	return opts, nil
}

func (o runOptions) override(cfg *config.AppConfig) {
	cfg.Dump.Output = config.DumpOutput(o.Dump)
	if o.SerialPort != "" {
		cfg.Dump.SerialPort = o.SerialPort
	}
	if o.TCPHost != "" {
		cfg.Dump.TCPHost = o.TCPHost
	}
	if o.Radio != "" {
		cfg.Radio.Source = config.RadioSource(o.Radio)
	}
	if o.PcapFile != "" {
		cfg.Radio.PcapFile = o.PcapFile
	}
	if o.Budget > 0 {
		cfg.Scan.BudgetSeconds = max(1, int(o.Budget.Round(time.Second)/time.Second))
	}
	// Scripted runs have nobody watching the panel.
	cfg.Display.ResultHoldMs = 0
	cfg.Logging.LogToFile = false
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("run debug tool", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseRunOptions(args, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Initialize(ctx, app.Options{
		ConfigPath: opts.ConfigPath,
		Console:    os.Stderr,
		DumpStdout: os.Stdout,
		Override:   opts.override,
	})
	if err != nil {
		return fmt.Errorf("initialize runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()

	logger := rt.LogManager.Logger("cli")
	logger.Info("starting macsniff debug", "version", app.BuildVersion(), "action", opts.Action)

	g, gctx := errgroup.WithContext(rt.Ctx)
	actionDone := make(chan struct{})

	if opts.MetricsAddr != "" {
		ln, err := net.Listen("tcp", opts.MetricsAddr)
		if err != nil {
			return fmt.Errorf("listen metrics: %w", err)
		}
		srv := &http.Server{
			Handler:           promhttp.HandlerFor(rt.Metrics.Gatherer(), promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		logger.Info("serving metrics", "addr", ln.Addr().String())

		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-actionDone:
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer close(actionDone)
		return rt.Device.RunAction(gctx, opts.Action)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("action finished", "action", opts.Action)

	return nil
}
