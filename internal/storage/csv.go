package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/skobkin/macsniff/internal/capture"
)

var csvHeader = []string{"index", "mac_address", "timestamp"}

// WriteCSV exports addresses as index,mac_address,timestamp rows stamped with at.
func WriteCSV(w io.Writer, macs []capture.MAC, at time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	ts := strconv.FormatInt(at.Unix(), 10)
	for i, mac := range macs {
		if err := cw.Write([]string{strconv.Itoa(i), mac.String(), ts}); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()

	return cw.Error()
}
