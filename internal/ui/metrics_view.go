package ui

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// formatTotals renders the capture counters shown under the panel.
func formatTotals(totals map[string]float64) string {
	get := func(name string) string {
		return humanize.Comma(int64(totals["macsniff_capture_"+name+"_total"]))
	}

	return fmt.Sprintf("frames %s (short %s)  queued %s  dropped %s",
		get("frames"), get("short_frames"), get("addresses_queued"), get("addresses_dropped"))
}
