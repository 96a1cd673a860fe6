package display

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/skobkin/macsniff/internal/events"
	"github.com/skobkin/macsniff/internal/menu"
)

const (
	marginX    = 5
	marginY    = 5
	lineHeight = 12
)

// MaxRows is how many text rows fit between the margins.
const MaxRows = (Height - marginY) / lineHeight

// ShowMenu draws the framed option list. The selected row carries the
// menu marker. Longer lists scroll so the selection stays visible.
func ShowMenu(d Display, items []menu.Item) error {
	if err := d.Clear(); err != nil {
		return err
	}
	if err := d.DrawRect(0, 0, Width, Height, true); err != nil {
		return err
	}

	start := 0
	for i, it := range items {
		if it.Selected && i >= MaxRows {
			start = i - MaxRows + 1
		}
	}
	for row, it := range items[start:] {
		if row >= MaxRows {
			break
		}
		if err := d.DrawText(marginX, marginY+row*lineHeight, it.Text(), true); err != nil {
			return err
		}
	}

	return d.Flush()
}

// ShowMessage clears the panel and prints up to MaxRows lines.
func ShowMessage(d Display, lines ...string) error {
	if err := d.Clear(); err != nil {
		return err
	}
	for i, l := range lines {
		if i >= MaxRows {
			break
		}
		if err := d.DrawText(marginX, marginY+i*lineHeight, l, true); err != nil {
			return err
		}
	}

	return d.Flush()
}

func ShowScanStatus(d Display, st events.ScanStatus) error {
	return ShowMessage(d,
		"Scanning...",
		fmt.Sprintf("Left: %ds", st.SecondsRemaining),
		fmt.Sprintf("Unique: %d", st.UniqueCount),
	)
}

func ShowSaved(d Display, count int, path string) error {
	return ShowMessage(d, "Saved", fmt.Sprintf("%d MACs", count), path)
}

func ShowSpace(d Display, total, used uint64) error {
	var free uint64
	if total > used {
		free = total - used
	}

	return ShowMessage(d,
		"Total: "+humanize.IBytes(total),
		"Used: "+humanize.IBytes(used),
		"Free: "+humanize.IBytes(free),
	)
}

func ShowDumpResult(d Display, files int, totalBytes int64) error {
	return ShowMessage(d, "Dump done", fmt.Sprintf("%d files", files), humanize.IBytes(uint64(max(totalBytes, 0))))
}

func ShowSleeping(d Display) error {
	return ShowMessage(d, "Sleeping")
}
