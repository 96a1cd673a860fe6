package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skobkin/macsniff/internal/dump"
	"github.com/skobkin/macsniff/internal/menu"
)

// RadioSource selects where received frames come from.
type RadioSource string

// DumpOutput selects the channel dump lines are written to.
type DumpOutput string

const (
	RadioSourceSynthetic RadioSource = "synthetic"
	RadioSourceReplay    RadioSource = "replay"
	RadioSourceStub      RadioSource = "stub"

	DumpOutputLog    DumpOutput = "log"
	DumpOutputStdout DumpOutput = "stdout"
	DumpOutputSerial DumpOutput = "serial"
	DumpOutputTCP    DumpOutput = "tcp"

	DefaultSerialBaud        = 115200
	DefaultLongPressMs       = 2000
	DefaultPollIntervalMs    = 10
	DefaultQueueCapacity     = 100
	DefaultBatchSize         = 8
	DefaultBudgetSeconds     = 30
	DefaultStatusIntervalSec = 3
	DefaultTickMs            = 10
	DefaultMountPoint        = "/spiffs"
	DefaultCapacityBytes     = 1 << 20
	DefaultChunkSize         = 64
	DefaultChunkDelayMs      = 10
	DefaultSyntheticRate     = 200
	DefaultSyntheticPool     = 64
	DefaultTCPPort           = 4404
	DefaultResultHoldMs      = 2000
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// ButtonConfig tunes press classification.
type ButtonConfig struct {
	LongPressMs    int  `json:"long_press_ms"`
	PollIntervalMs int  `json:"poll_interval_ms"`
	PollOnly       bool `json:"poll_only"`
	// GlitchMs drops presses shorter than this. Zero keeps every press.
	GlitchMs int `json:"glitch_ms"`
}

// DisplayConfig controls how long result screens stay up before sleep.
type DisplayConfig struct {
	ResultHoldMs int `json:"result_hold_ms"`
}

// MenuConfig lists the start menu entries in display order.
type MenuConfig struct {
	Options []string `json:"options"`
}

// CaptureConfig sizes the hand-off queue between the radio callback and the loop.
type CaptureConfig struct {
	QueueCapacity int `json:"queue_capacity"`
	BatchSize     int `json:"batch_size"`
}

// ScanConfig bounds a scan session.
type ScanConfig struct {
	BudgetSeconds         int `json:"budget_seconds"`
	StatusIntervalSeconds int `json:"status_interval_seconds"`
	TickMs                int `json:"tick_ms"`
	// LiveAppend writes each new address to flash as soon as it is seen.
	LiveAppend bool `json:"live_append"`
}

// StorageConfig describes the emulated flash partition.
type StorageConfig struct {
	Root          string `json:"root"`
	MountPoint    string `json:"mount_point"`
	CapacityBytes uint64 `json:"capacity_bytes"`
}

// DumpConfig controls the host-facing dump channel.
type DumpConfig struct {
	Output       DumpOutput `json:"output"`
	ChunkSize    int        `json:"chunk_size"`
	ChunkDelayMs int        `json:"chunk_delay_ms"`
	SerialPort   string     `json:"serial_port"`
	SerialBaud   int        `json:"serial_baud"`
	TCPHost      string     `json:"tcp_host"`
	TCPPort      int        `json:"tcp_port"`
}

// RadioConfig selects and tunes the frame source.
type RadioConfig struct {
	Source        RadioSource `json:"source"`
	PcapFile      string      `json:"pcap_file"`
	ReplaySpeed   float64     `json:"replay_speed"`
	ReplayLoop    bool        `json:"replay_loop"`
	SyntheticRate int         `json:"synthetic_rate"`
	SyntheticPool int         `json:"synthetic_pool"`
}

// HostConfig is used by the host-side receiver tool.
type HostConfig struct {
	DatabasePath string `json:"database_path"`
	OutputDir    string `json:"output_dir"`
	Notify       bool   `json:"notify"`
}

// AppConfig is the root persisted configuration.
type AppConfig struct {
	Logging LoggingConfig `json:"logging"`
	Button  ButtonConfig  `json:"button"`
	Display DisplayConfig `json:"display"`
	Menu    MenuConfig    `json:"menu"`
	Capture CaptureConfig `json:"capture"`
	Scan    ScanConfig    `json:"scan"`
	Storage StorageConfig `json:"storage"`
	Dump    DumpConfig    `json:"dump"`
	Radio   RadioConfig   `json:"radio"`
	Host    HostConfig    `json:"host"`
}

func Default() AppConfig {
	options := make([]string, len(menu.DefaultOptions))
	for i, o := range menu.DefaultOptions {
		options[i] = string(o)
	}

	return AppConfig{
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
		Button: ButtonConfig{
			LongPressMs:    DefaultLongPressMs,
			PollIntervalMs: DefaultPollIntervalMs,
		},
		Display: DisplayConfig{ResultHoldMs: DefaultResultHoldMs},
		Menu:    MenuConfig{Options: options},
		Capture: CaptureConfig{
			QueueCapacity: DefaultQueueCapacity,
			BatchSize:     DefaultBatchSize,
		},
		Scan: ScanConfig{
			BudgetSeconds:         DefaultBudgetSeconds,
			StatusIntervalSeconds: DefaultStatusIntervalSec,
			TickMs:                DefaultTickMs,
		},
		Storage: StorageConfig{
			Root:          "",
			MountPoint:    DefaultMountPoint,
			CapacityBytes: DefaultCapacityBytes,
		},
		Dump: DumpConfig{
			Output:       DumpOutputLog,
			ChunkSize:    DefaultChunkSize,
			ChunkDelayMs: DefaultChunkDelayMs,
			SerialBaud:   DefaultSerialBaud,
			TCPPort:      DefaultTCPPort,
		},
		Radio: RadioConfig{
			Source:        RadioSourceSynthetic,
			SyntheticRate: DefaultSyntheticRate,
			SyntheticPool: DefaultSyntheticPool,
		},
		Host: HostConfig{
			Notify: true,
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

// FillMissingDefaults replaces zero values left by a partial config file.
// Chunk delay and result hold are the exceptions: zero there means none.
func (c *AppConfig) FillMissingDefaults() {
	d := Default()

	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Button.LongPressMs <= 0 {
		c.Button.LongPressMs = d.Button.LongPressMs
	}
	if c.Button.PollIntervalMs <= 0 {
		c.Button.PollIntervalMs = d.Button.PollIntervalMs
	}
	if c.Button.GlitchMs < 0 {
		c.Button.GlitchMs = 0
	}
	if c.Display.ResultHoldMs < 0 {
		c.Display.ResultHoldMs = 0
	}
	if len(c.Menu.Options) == 0 {
		c.Menu.Options = d.Menu.Options
	}
	if c.Capture.QueueCapacity <= 0 {
		c.Capture.QueueCapacity = d.Capture.QueueCapacity
	}
	if c.Capture.BatchSize <= 0 {
		c.Capture.BatchSize = d.Capture.BatchSize
	}
	if c.Scan.BudgetSeconds <= 0 {
		c.Scan.BudgetSeconds = d.Scan.BudgetSeconds
	}
	if c.Scan.StatusIntervalSeconds <= 0 {
		c.Scan.StatusIntervalSeconds = d.Scan.StatusIntervalSeconds
	}
	if c.Scan.TickMs <= 0 {
		c.Scan.TickMs = d.Scan.TickMs
	}
	if c.Storage.MountPoint == "" {
		c.Storage.MountPoint = d.Storage.MountPoint
	}
	if c.Storage.CapacityBytes == 0 {
		c.Storage.CapacityBytes = d.Storage.CapacityBytes
	}
	if c.Dump.Output == "" {
		c.Dump.Output = d.Dump.Output
	}
	if c.Dump.ChunkSize <= 0 {
		c.Dump.ChunkSize = d.Dump.ChunkSize
	}
	if c.Dump.ChunkDelayMs < 0 {
		c.Dump.ChunkDelayMs = 0
	}
	if c.Dump.SerialBaud <= 0 {
		c.Dump.SerialBaud = d.Dump.SerialBaud
	}
	if c.Dump.TCPPort <= 0 {
		c.Dump.TCPPort = d.Dump.TCPPort
	}
	if c.Radio.Source == "" {
		c.Radio.Source = d.Radio.Source
	}
	if c.Radio.SyntheticRate <= 0 {
		c.Radio.SyntheticRate = d.Radio.SyntheticRate
	}
	if c.Radio.SyntheticPool <= 0 {
		c.Radio.SyntheticPool = d.Radio.SyntheticPool
	}
}

func (c AppConfig) Validate() error {
	if _, err := c.MenuOptions(); err != nil {
		return err
	}
	if c.Dump.ChunkSize > dump.MaxChunkSize {
		return fmt.Errorf("dump chunk size too large: %d (max %d)", c.Dump.ChunkSize, dump.MaxChunkSize)
	}

	switch c.Radio.Source {
	case RadioSourceSynthetic, RadioSourceStub:
	case RadioSourceReplay:
		if strings.TrimSpace(c.Radio.PcapFile) == "" {
			return errors.New("pcap file is required for replay radio")
		}
		if c.Radio.ReplaySpeed < 0 {
			return errors.New("replay speed must not be negative")
		}
	default:
		return fmt.Errorf("unknown radio source: %s", c.Radio.Source)
	}

	switch c.Dump.Output {
	case DumpOutputLog, DumpOutputStdout:
	case DumpOutputSerial:
		if strings.TrimSpace(c.Dump.SerialPort) == "" {
			return errors.New("serial port is required")
		}
		if c.Dump.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	case DumpOutputTCP:
		if strings.TrimSpace(c.Dump.TCPHost) == "" {
			return errors.New("tcp host is required")
		}
	default:
		return fmt.Errorf("unknown dump output: %s", c.Dump.Output)
	}

	return nil
}

// MenuOptions parses the configured option names.
func (c AppConfig) MenuOptions() ([]menu.Option, error) {
	out := make([]menu.Option, 0, len(c.Menu.Options))
	for _, raw := range c.Menu.Options {
		opt, err := menu.ParseOption(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, opt)
	}
	if _, err := menu.New(out); err != nil {
		return nil, err
	}

	return out, nil
}

func (c ButtonConfig) LongPress() time.Duration {
	return time.Duration(c.LongPressMs) * time.Millisecond
}

func (c ButtonConfig) Glitch() time.Duration {
	return time.Duration(c.GlitchMs) * time.Millisecond
}

func (c ButtonConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c DisplayConfig) ResultHold() time.Duration {
	return time.Duration(c.ResultHoldMs) * time.Millisecond
}

func (c ScanConfig) Budget() time.Duration {
	return time.Duration(c.BudgetSeconds) * time.Second
}

func (c ScanConfig) StatusInterval() time.Duration {
	return time.Duration(c.StatusIntervalSeconds) * time.Second
}

func (c ScanConfig) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

func (c DumpConfig) ChunkDelay() time.Duration {
	return time.Duration(c.ChunkDelayMs) * time.Millisecond
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
