package ui

import (
	"strconv"
	"testing"
	"time"

	"github.com/skobkin/macsniff/internal/button"
	"github.com/skobkin/macsniff/internal/events"
)

func TestEventLogKeepsNewestLines(t *testing.T) {
	log := newEventLog(3)
	for i := range 5 {
		log.Append(strconv.Itoa(i))
	}

	if log.Len() != 3 {
		t.Fatalf("len: got %d want 3", log.Len())
	}
	for i, want := range []string{"2", "3", "4"} {
		if got := log.Line(i); got != want {
			t.Fatalf("line %d: got %q want %q", i, got, want)
		}
	}
	if got := log.Line(7); got != "" {
		t.Fatalf("out of range line: got %q", got)
	}

	log.Clear()
	if log.Len() != 0 {
		t.Fatalf("expected empty log after clear")
	}
}

func TestFormatEvent(t *testing.T) {
	cases := []struct {
		msg  any
		want string
	}{
		{events.PhaseChange{Phase: events.PhaseScan}, "phase: scan"},
		{events.ButtonEvent{Event: button.LongPress}, "button: " + button.LongPress.String()},
		{events.ScanStatus{SecondsRemaining: 12, UniqueCount: 4, Queued: 1}, "scan: 12s left, 4 unique, 1 queued"},
		{events.ScanFinished{UniqueCount: 9, Elapsed: 30 * time.Second}, "scan finished: 9 unique in 30s"},
		{events.ScanFinished{UniqueCount: 1, Elapsed: time.Second, Err: "source closed"}, "scan finished: 1 unique in 1s (source closed)"},
		{events.StorageSaved{Path: "/spiffs/scan_1.bin", Records: 2, Bytes: 16}, "saved /spiffs/scan_1.bin: 2 records, 16 B"},
		{events.StorageSpace{Total: 4096, Used: 1024}, "storage: 1.0 KiB used of 4.0 KiB"},
		{events.DumpLine{Line: "FILE_END"}, "> FILE_END"},
		{events.DumpFinished{Files: 2, TotalBytes: 26}, "dump finished: 2 files, 0 skipped, 26 B"},
		{events.DeviceFailure{Err: "mount failed", Fatal: true}, "fatal: mount failed"},
		{events.MenuChanged{}, ""},
		{"unexpected", ""},
	}

	for _, tc := range cases {
		if got := formatEvent(tc.msg); got != tc.want {
			t.Fatalf("%T: got %q want %q", tc.msg, got, tc.want)
		}
	}
}

func TestFormatTotals(t *testing.T) {
	got := formatTotals(map[string]float64{
		"macsniff_capture_frames_total":            12345,
		"macsniff_capture_short_frames_total":      3,
		"macsniff_capture_addresses_queued_total":  2000,
		"macsniff_capture_addresses_dropped_total": 0,
	})
	want := "frames 12,345 (short 3)  queued 2,000  dropped 0"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if got := formatTotals(nil); got != "frames 0 (short 0)  queued 0  dropped 0" {
		t.Fatalf("empty totals: got %q", got)
	}
}

func TestNotificationFor(t *testing.T) {
	p, ok := notificationFor(events.StorageSaved{Path: "/spiffs/scan_7.bin", Records: 3})
	if !ok || p.Content != "3 MACs in scan_7.bin" {
		t.Fatalf("storage saved: got %+v ok=%v", p, ok)
	}
	if _, ok := notificationFor(events.DeviceFailure{Err: "x", Fatal: false}); ok {
		t.Fatalf("non-fatal failures must not notify")
	}
	if _, ok := notificationFor(events.PhaseChange{}); ok {
		t.Fatalf("phase changes must not notify")
	}
}
