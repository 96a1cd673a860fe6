package radio

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	DefaultSyntheticRate = 200
	DefaultSyntheticPool = 64
)

var broadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

type SyntheticConfig struct {
	// Rate is frames per second.
	Rate int
	// Pool is the number of distinct stations that appear on the air.
	Pool int
	Seed uint64
}

// SyntheticDriver generates beacons and data frames from a fixed population
// of stations, for running the device without any capture at hand.
type SyntheticDriver struct {
	receiver
	pump

	cfg      SyntheticConfig
	logger   *slog.Logger
	stations []net.HardwareAddr
}

func NewSyntheticDriver(cfg SyntheticConfig, logger *slog.Logger) *SyntheticDriver {
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultSyntheticRate
	}
	if cfg.Pool <= 0 {
		cfg.Pool = DefaultSyntheticPool
	}
	if logger == nil {
		logger = slog.Default()
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)) // #nosec G404 -- traffic simulation
	stations := make([]net.HardwareAddr, cfg.Pool)
	for i := range stations {
		mac := make(net.HardwareAddr, 6)
		for j := range mac {
			mac[j] = byte(rng.UintN(256))
		}
		mac[0] = mac[0]&0xfe | 0x02 // locally administered unicast
		stations[i] = mac
	}

	return &SyntheticDriver{cfg: cfg, logger: logger, stations: stations}
}

// Stations returns the generated population.
func (d *SyntheticDriver) Stations() []net.HardwareAddr {
	return d.stations
}

func (d *SyntheticDriver) Start() error {
	if !d.hasCallback() {
		return ErrNoCallback
	}
	return d.start(d.run)
}

func (d *SyntheticDriver) SetPromiscuous(enabled bool) error {
	d.promiscuous.Store(enabled)
	return nil
}

func (d *SyntheticDriver) RegisterReceiveCallback(fn func([]byte)) error {
	return d.register(fn)
}

func (d *SyntheticDriver) Stop() error {
	return d.stop()
}

func (d *SyntheticDriver) run(ctx context.Context) {
	rng := rand.New(rand.NewPCG(d.cfg.Seed+1, d.cfg.Seed)) // #nosec G404 -- traffic simulation
	interval := time.Second / time.Duration(d.cfg.Rate)
	buf := gopacket.NewSerializeBuffer()

	for {
		frame, err := d.nextFrame(rng, buf)
		if err != nil {
			d.logger.Warn("synthetic frame build failed", "error", err)
			return
		}
		d.deliver(frame)
		if !sleepWithContext(ctx, interval) {
			return
		}
	}
}

// nextFrame alternates beacons to broadcast with data frames between two stations.
func (d *SyntheticDriver) nextFrame(rng *rand.Rand, buf gopacket.SerializeBuffer) ([]byte, error) {
	src := d.stations[rng.IntN(len(d.stations))]
	dot11 := &layers.Dot11{
		Type:     layers.Dot11TypeMgmtBeacon,
		Address1: broadcast,
		Address2: src,
		Address3: src,
	}
	if rng.IntN(2) == 1 {
		dot11.Type = layers.Dot11TypeData
		dot11.Address1 = d.stations[rng.IntN(len(d.stations))]
	}

	if err := buf.Clear(); err != nil {
		return nil, err
	}
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, dot11); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
