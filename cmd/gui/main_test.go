package main

import (
	"testing"

	"github.com/skobkin/macsniff/internal/config"
)

func TestParseLaunchOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    launchOptions
		wantErr bool
	}{
		{name: "defaults", args: nil, want: launchOptions{}},
		{name: "poll only", args: []string{"--poll-only"}, want: launchOptions{PollOnly: true}},
		{name: "no wake", args: []string{"--no-wake"}, want: launchOptions{NoWake: true}},
		{name: "pcap implies replay", args: []string{"--pcap", "air.pcap"}, want: launchOptions{Radio: "replay", PcapFile: "air.pcap"}},
		{name: "explicit radio", args: []string{"--radio", "stub"}, want: launchOptions{Radio: "stub"}},
		{name: "unexpected positional", args: []string{"extra"}, wantErr: true},
		{name: "unknown flag", args: []string{"--nope"}, wantErr: true},
	}

	for _, tc := range tests {
		got, err := parseLaunchOptions(tc.args)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got nil", tc.name)
			}

			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.name, tc.want, got)
		}
	}
}

func TestLaunchOptionsOverride(t *testing.T) {
	cfg := config.Default()
	launchOptions{Radio: "replay", PcapFile: "air.pcap"}.override(&cfg)

	if cfg.Radio.Source != config.RadioSourceReplay || cfg.Radio.PcapFile != "air.pcap" {
		t.Fatalf("override not applied: %+v", cfg.Radio)
	}

	cfg = config.Default()
	launchOptions{}.override(&cfg)
	if cfg.Radio.Source != config.RadioSourceSynthetic {
		t.Fatalf("empty options must keep the configured radio, got %q", cfg.Radio.Source)
	}
}
