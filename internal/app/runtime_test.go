package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/skobkin/macsniff/internal/button"
	"github.com/skobkin/macsniff/internal/config"
	"github.com/skobkin/macsniff/internal/menu"
)

func newRuntimeForTests(t *testing.T, mutate func(*config.AppConfig)) (*Runtime, *bytes.Buffer) {
	t.Helper()

	root := t.TempDir()
	paths := Paths{
		RootDir:    root,
		ConfigFile: filepath.Join(root, ConfigFilename),
		LogFile:    filepath.Join(root, LogFilename),
		DataDir:    root,
		FlashDir:   filepath.Join(root, FlashDir),
		DumpsDir:   filepath.Join(root, DumpsDir),
	}

	cfg := config.Default()
	cfg.Radio.Source = config.RadioSourceStub
	cfg.Dump.ChunkDelayMs = 0
	cfg.Display.ResultHoldMs = 0
	if mutate != nil {
		mutate(&cfg)
	}

	var stdout bytes.Buffer
	rt, err := Build(context.Background(), paths, cfg, Options{
		Console:    &bytes.Buffer{},
		DumpStdout: &stdout,
	})
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	return rt, &stdout
}

func TestBuildWiresDevice(t *testing.T) {
	rt, _ := newRuntimeForTests(t, func(c *config.AppConfig) {
		c.Storage.CapacityBytes = 8192
	})

	if rt.Menu.Len() != len(menu.DefaultOptions) {
		t.Fatalf("menu size: got %d want %d", rt.Menu.Len(), len(menu.DefaultOptions))
	}
	if rt.Button.Threshold() != rt.Config.Button.LongPress() {
		t.Fatalf("button threshold: got %v", rt.Button.Threshold())
	}
	if rt.Ingest.Cap() != config.DefaultQueueCapacity {
		t.Fatalf("queue capacity: got %d", rt.Ingest.Cap())
	}

	if err := rt.Device.RunAction(rt.Ctx, menu.OptionSize); err != nil {
		t.Fatalf("size action: %v", err)
	}
	texts := rt.Display.Texts()
	if len(texts) != 1 || texts[0] != "Sleeping" {
		t.Fatalf("final screen: got %v", texts)
	}
}

func TestBuildAppliesButtonGlitchFilter(t *testing.T) {
	rt, _ := newRuntimeForTests(t, func(c *config.AppConfig) {
		c.Button.GlitchMs = 50
	})

	_ = rt.Button.HandleEdge(true)
	_ = rt.Button.HandleEdge(false)
	if ev, err := rt.Button.Take(); err != nil || ev != button.None {
		t.Fatalf("bounce with filter: got %v err=%v want none", ev, err)
	}

	plain, _ := newRuntimeForTests(t, nil)
	_ = plain.Button.HandleEdge(true)
	_ = plain.Button.HandleEdge(false)
	if ev, err := plain.Button.Take(); err != nil || ev != button.ShortPress {
		t.Fatalf("quick press without filter: got %v err=%v want short_press", ev, err)
	}
}

func TestDeviceConfigMapsScanSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Scan.LiveAppend = true
	cfg.Scan.BudgetSeconds = 5

	dc := DeviceConfig(cfg)
	if !dc.LiveAppend {
		t.Fatalf("live append not mapped")
	}
	if dc.Scan.Budget != 5*time.Second {
		t.Fatalf("budget: got %v want 5s", dc.Scan.Budget)
	}
}

func TestDumpActionWritesToStdout(t *testing.T) {
	rt, stdout := newRuntimeForTests(t, func(c *config.AppConfig) {
		c.Dump.Output = config.DumpOutputStdout
	})
	if err := os.MkdirAll(rt.Flash.Root(), 0o750); err != nil {
		t.Fatalf("mkdir flash: %v", err)
	}
	if err := os.WriteFile(filepath.Join(rt.Flash.Root(), "scan_1.bin"), []byte{0, 0, 0, 0}, 0o600); err != nil {
		t.Fatalf("seed flash: %v", err)
	}

	if err := rt.Device.RunAction(rt.Ctx, menu.OptionDump); err != nil {
		t.Fatalf("dump action: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{"MAC_SNIFF_DUMP_BEGIN\r\n", "FILE_BEGIN:/spiffs/scan_1.bin\r\n", "CHUNK:00000000\r\n", "TOTAL_BYTES:4\r\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("dump output missing %q:\n%s", want, out)
		}
	}
}

func TestSaveAndApplyConfigSwitchesDumpChannel(t *testing.T) {
	rt, _ := newRuntimeForTests(t, nil)
	if rt.DumpChannel.Name() != "log" {
		t.Fatalf("expected log channel, got %q", rt.DumpChannel.Name())
	}

	next := rt.CurrentConfig()
	next.Dump.Output = config.DumpOutputTCP
	next.Dump.TCPHost = "192.168.4.1"
	if err := rt.SaveAndApplyConfig(next); err != nil {
		t.Fatalf("save and apply: %v", err)
	}

	if rt.DumpChannel.Name() != "tcp" {
		t.Fatalf("expected tcp channel, got %q", rt.DumpChannel.Name())
	}
	loaded, err := config.Load(rt.Paths.ConfigFile)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if loaded.Dump.TCPHost != "192.168.4.1" {
		t.Fatalf("config not persisted: %+v", loaded.Dump)
	}
}

func TestSaveAndApplyConfigRejectsInvalid(t *testing.T) {
	rt, _ := newRuntimeForTests(t, nil)

	next := rt.CurrentConfig()
	next.Menu.Options = []string{"reboot"}
	if err := rt.SaveAndApplyConfig(next); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := os.Stat(rt.Paths.ConfigFile); !os.IsNotExist(err) {
		t.Fatalf("invalid config written: %v", err)
	}
}

func TestEraseFlash(t *testing.T) {
	rt, _ := newRuntimeForTests(t, nil)
	if err := os.MkdirAll(rt.Flash.Root(), 0o750); err != nil {
		t.Fatalf("mkdir flash: %v", err)
	}
	for _, name := range []string{"scan_1.bin", "scan_2.bin"} {
		if err := os.WriteFile(filepath.Join(rt.Flash.Root(), name), []byte{0, 0, 0, 0}, 0o600); err != nil {
			t.Fatalf("seed flash: %v", err)
		}
	}

	removed, err := rt.EraseFlash()
	if err != nil {
		t.Fatalf("erase flash: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed: got %d want 2", removed)
	}
	entries, _ := os.ReadDir(rt.Flash.Root())
	if len(entries) != 0 {
		t.Fatalf("flash not empty: %v", entries)
	}
}

func TestInitializeAppliesOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "cfg"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(t.TempDir(), "cache"))

	rt, err := Initialize(context.Background(), Options{
		Console: &bytes.Buffer{},
		Override: func(c *config.AppConfig) {
			c.Radio.Source = config.RadioSourceStub
			c.Menu.Options = []string{"size", "exit"}
		},
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer func() { _ = rt.Close() }()

	sel, err := rt.Menu.Selected()
	if err != nil {
		t.Fatalf("selected: %v", err)
	}
	if sel != menu.OptionSize {
		t.Fatalf("first option: got %q want size", sel)
	}
}
