package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/skobkin/macsniff/internal/config"
	"github.com/skobkin/macsniff/internal/transport"
)

// DumpChannel is the dump.LineWriter the device writes protocol lines to. It
// wraps the transport picked by config, connects it on the first line and lets
// the runtime swap it on config updates.
type DumpChannel struct {
	ctx context.Context

	mu        sync.RWMutex
	cfg       config.DumpConfig
	transport transport.Transport
	connected bool
}

func NewDumpChannel(ctx context.Context, cfg config.DumpConfig, stdout io.Writer, logger *slog.Logger) (*DumpChannel, error) {
	tr, err := newTransportForDump(cfg, stdout, logger)
	if err != nil {
		return nil, err
	}

	return &DumpChannel{
		ctx:       ctx,
		cfg:       cfg,
		transport: tr,
	}, nil
}

// Apply replaces the active transport. The old one is closed; the new one
// connects lazily on the next line.
func (c *DumpChannel) Apply(cfg config.DumpConfig, stdout io.Writer, logger *slog.Logger) error {
	next, err := newTransportForDump(cfg, stdout, logger)
	if err != nil {
		return err
	}

	c.mu.Lock()
	current := c.transport
	c.transport = next
	c.cfg = cfg
	c.connected = false
	c.mu.Unlock()

	if current != nil {
		_ = current.Close()
	}

	return nil
}

func (c *DumpChannel) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.transport.Name()
}

func (c *DumpChannel) StatusTarget() string {
	c.mu.RLock()
	tr := c.transport
	cfg := c.cfg
	c.mu.RUnlock()

	if provider, ok := tr.(transport.StatusTargetResolver); ok {
		target := strings.TrimSpace(provider.StatusTarget())
		if target != "" {
			return target
		}
	}

	return string(cfg.Output)
}

func (c *DumpChannel) WriteLine(line string) error {
	c.mu.Lock()
	tr := c.transport
	if !c.connected {
		if err := tr.Connect(c.ctx); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("connect dump channel %s: %w", tr.Name(), err)
		}
		c.connected = true
	}
	c.mu.Unlock()

	return tr.WriteLine(c.ctx, line)
}

func (c *DumpChannel) Close() error {
	c.mu.Lock()
	tr := c.transport
	c.connected = false
	c.mu.Unlock()

	return tr.Close()
}

func NewTransportForDump(cfg config.DumpConfig, stdout io.Writer, logger *slog.Logger) (transport.Transport, error) {
	return newTransportForDump(cfg, stdout, logger)
}

func newTransportForDump(cfg config.DumpConfig, stdout io.Writer, logger *slog.Logger) (transport.Transport, error) {
	switch cfg.Output {
	case config.DumpOutputLog, "":
		return &logTransport{logger: logger}, nil
	case config.DumpOutputStdout:
		return transport.NewStreamTransport("stdout", nil, stdout), nil
	case config.DumpOutputSerial:
		return transport.NewSerialTransport(cfg.SerialPort, cfg.SerialBaud), nil
	case config.DumpOutputTCP:
		return transport.NewTCPTransport(cfg.TCPHost, cfg.TCPPort), nil
	default:
		return nil, fmt.Errorf("unknown dump output: %q", cfg.Output)
	}
}

// logTransport writes each line to the log. The emulator mirrors the same
// lines from the bus into its log pane.
type logTransport struct {
	logger *slog.Logger
}

func (t *logTransport) Name() string { return "log" }

func (t *logTransport) Connect(ctx context.Context) error { return ctx.Err() }

func (t *logTransport) Close() error { return nil }

func (t *logTransport) ReadLine(context.Context) (string, error) { return "", io.EOF }

func (t *logTransport) WriteLine(_ context.Context, line string) error {
	logger := t.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("dump", "line", line)

	return nil
}
