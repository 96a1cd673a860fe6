package radio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var ErrUnsupportedLinkType = errors.New("unsupported capture link type")

// ReplayConfig controls how a capture file is played back.
type ReplayConfig struct {
	// Speed scales the recorded inter-frame gaps. Zero replays as fast as possible.
	Speed float64
	// Loop restarts the file when it ends.
	Loop bool
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// ReplayDriver plays an 802.11 capture (pcap or pcapng, raw or radiotap) into
// the receive callback.
type ReplayDriver struct {
	receiver
	pump

	path   string
	cfg    ReplayConfig
	logger *slog.Logger
}

func NewReplayDriver(path string, cfg ReplayConfig, logger *slog.Logger) *ReplayDriver {
	if logger == nil {
		logger = slog.Default()
	}

	return &ReplayDriver{path: path, cfg: cfg, logger: logger}
}

func (d *ReplayDriver) Start() error {
	if !d.hasCallback() {
		return ErrNoCallback
	}

	// Open once up front so a bad file fails Start instead of the goroutine.
	f, r, err := openCapture(d.path)
	if err != nil {
		return err
	}
	_ = f.Close()
	if _, err := frameExtractor(r.LinkType()); err != nil {
		return err
	}

	return d.start(d.run)
}

func (d *ReplayDriver) SetPromiscuous(enabled bool) error {
	d.promiscuous.Store(enabled)
	return nil
}

func (d *ReplayDriver) RegisterReceiveCallback(fn func([]byte)) error {
	return d.register(fn)
}

func (d *ReplayDriver) Stop() error {
	return d.stop()
}

func (d *ReplayDriver) run(ctx context.Context) {
	for {
		n, err := d.playOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("capture replay failed", "path", d.path, "error", err)
			return
		}
		d.logger.Debug("capture replay pass finished", "path", d.path, "frames", n)
		if !d.cfg.Loop || ctx.Err() != nil {
			return
		}
	}
}

func (d *ReplayDriver) playOnce(ctx context.Context) (int, error) {
	f, r, err := openCapture(d.path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	extract, err := frameExtractor(r.LinkType())
	if err != nil {
		return 0, err
	}

	var (
		prev  time.Time
		count int
	)
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		data, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("read packet: %w", err)
		}

		if d.cfg.Speed > 0 && !prev.IsZero() {
			gap := time.Duration(float64(ci.Timestamp.Sub(prev)) / d.cfg.Speed)
			if !sleepWithContext(ctx, gap) {
				return count, ctx.Err()
			}
		}
		prev = ci.Timestamp

		frame, ok := extract(data)
		if !ok {
			continue
		}
		if d.deliver(frame) {
			count++
		}
	}
}

func openCapture(path string) (*os.File, packetReader, error) {
	f, err := os.Open(path) // #nosec G304 -- capture path comes from the operator's config
	if err != nil {
		return nil, nil, fmt.Errorf("open capture %q: %w", path, err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("read capture header: %w", err)
	}

	var r packetReader
	if magic[0] == 0x0a && magic[1] == 0x0d && magic[2] == 0x0d && magic[3] == 0x0a {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("parse capture %q: %w", path, err)
	}

	return f, r, nil
}

// frameExtractor returns a function yielding the bare 802.11 frame of a record.
func frameExtractor(lt layers.LinkType) (func([]byte) ([]byte, bool), error) {
	switch lt {
	case layers.LinkTypeIEEE802_11:
		return func(data []byte) ([]byte, bool) { return data, true }, nil
	case layers.LinkTypeIEEE80211Radio:
		return stripRadiotap, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLinkType, lt)
	}
}

func stripRadiotap(data []byte) ([]byte, bool) {
	var rt layers.RadioTap
	if err := rt.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, false
	}

	return rt.Payload, true
}
