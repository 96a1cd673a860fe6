package storage

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/skobkin/macsniff/internal/capture"
)

// WriteText renders a plain listing with a short comment header naming the
// source file, one lowercase colon-separated address per line.
func WriteText(w io.Writer, source string, macs []capture.MAC, at time.Time) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# MAC addresses extracted from %s\n", source)
	fmt.Fprintf(bw, "# Extracted on %s\n", at.Format(time.DateTime))
	fmt.Fprintf(bw, "# Total MAC addresses: %d\n\n", len(macs))
	for _, mac := range macs {
		bw.WriteString(mac.String())
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write text listing: %w", err)
	}

	return nil
}
