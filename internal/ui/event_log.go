package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/skobkin/macsniff/internal/events"
)

const defaultLogLines = 500

// eventLog keeps the newest lines shown in the log pane.
type eventLog struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newEventLog(maxLines int) *eventLog {
	if maxLines <= 0 {
		maxLines = defaultLogLines
	}

	return &eventLog{max: maxLines}
}

func (l *eventLog) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = append(l.lines, line)
	if over := len(l.lines) - l.max; over > 0 {
		l.lines = append(l.lines[:0], l.lines[over:]...)
	}
}

func (l *eventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

func (l *eventLog) Line(i int) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.lines) {
		return ""
	}
	return l.lines[i]
}

func (l *eventLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = l.lines[:0]
}

// formatEvent renders a bus message for the log pane. Unknown payloads and
// menu redraws yield "".
func formatEvent(msg any) string {
	switch m := msg.(type) {
	case events.PhaseChange:
		return "phase: " + string(m.Phase)
	case events.ButtonEvent:
		return "button: " + m.Event.String()
	case events.ScanStatus:
		return fmt.Sprintf("scan: %ds left, %d unique, %d queued", m.SecondsRemaining, m.UniqueCount, m.Queued)
	case events.ScanFinished:
		line := fmt.Sprintf("scan finished: %d unique in %s", m.UniqueCount, m.Elapsed.Round(100*time.Millisecond))
		if m.Err != "" {
			line += " (" + m.Err + ")"
		}
		return line
	case events.StorageSaved:
		return fmt.Sprintf("saved %s: %d records, %s", m.Path, m.Records, humanize.IBytes(uint64(m.Bytes))) // #nosec G115
	case events.StorageSpace:
		return fmt.Sprintf("storage: %s used of %s", humanize.IBytes(m.Used), humanize.IBytes(m.Total))
	case events.DumpLine:
		return "> " + m.Line
	case events.DumpFinished:
		return fmt.Sprintf("dump finished: %d files, %d skipped, %s", m.Files, m.Skipped, humanize.IBytes(uint64(m.TotalBytes))) // #nosec G115
	case events.DeviceFailure:
		prefix := "error"
		if m.Fatal {
			prefix = "fatal"
		}
		return prefix + ": " + strings.TrimSpace(m.Err)
	default:
		return ""
	}
}
