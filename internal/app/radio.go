package app

import (
	"fmt"
	"log/slog"

	"github.com/skobkin/macsniff/internal/config"
	"github.com/skobkin/macsniff/internal/radio"
)

// NewRadio builds the frame source selected by config.
func NewRadio(cfg config.RadioConfig, logger *slog.Logger) (radio.Driver, error) {
	switch cfg.Source {
	case config.RadioSourceSynthetic:
		return radio.NewSyntheticDriver(radio.SyntheticConfig{
			Rate: cfg.SyntheticRate,
			Pool: cfg.SyntheticPool,
		}, logger), nil
	case config.RadioSourceReplay:
		return radio.NewReplayDriver(cfg.PcapFile, radio.ReplayConfig{
			Speed: cfg.ReplaySpeed,
			Loop:  cfg.ReplayLoop,
		}, logger), nil
	case config.RadioSourceStub:
		return radio.NewStubDriver(), nil
	default:
		return nil, fmt.Errorf("unknown radio source: %q", cfg.Source)
	}
}
