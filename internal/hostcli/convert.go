package hostcli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skobkin/macsniff/internal/persistence"
	"github.com/skobkin/macsniff/internal/storage"
)

const (
	formatText = "text"
	formatCSV  = "csv"
)

type convertFlags struct {
	out    string
	format string
}

func newConvertCmd(e *env) *cobra.Command {
	f := &convertFlags{}
	cmd := &cobra.Command{
		Use:   "convert <file|dir>",
		Short: "Convert binary scan files to text or CSV",
		Long: `Convert binary scan files into readable listings.

A scan file is a little-endian u32 count followed by 6-byte addresses. The
text format writes a short comment header and one address per line; the csv
format writes index,mac_address,timestamp rows. Files too short to hold a
header are reported and skipped.`,
		Example: `  macsniff-host convert ./dump_20250101_120000
  macsniff-host convert scan_1700000000.bin --format csv --out ./csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.convert(cmd, args[0], f)
		},
	}

	cmd.Flags().StringVar(&f.out, "out", "converted", "output directory")
	cmd.Flags().StringVar(&f.format, "format", formatText, "output format: text or csv")

	return cmd
}

func (e *env) convert(cmd *cobra.Command, input string, f *convertFlags) error {
	if f.format != formatText && f.format != formatCSV {
		return fmt.Errorf("unsupported format %q", f.format)
	}

	paths, err := collectBinFiles(input)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no .bin files found in %s", input)
	}
	if err := os.MkdirAll(f.out, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	w := out(cmd)
	var processed, total int
	for _, p := range paths {
		n, err := e.convertOne(p, f)
		if errors.Is(err, storage.ErrShortHeader) {
			fmt.Fprintf(w, "Skipping %s: file too short\n", filepath.Base(p))
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Converted %s: %d MAC addresses\n", filepath.Base(p), n)
		processed++
		total += n
	}

	fmt.Fprintf(w, "Conversion complete: %d files processed, %d MAC addresses extracted\n", processed, total)

	return nil
}

func (e *env) convertOne(p string, f *convertFlags) (int, error) {
	sf, err := loadScanFile(p)
	if err != nil {
		return 0, err
	}

	ext := ".txt"
	if f.format == formatCSV {
		ext = ".csv"
	}
	name := strings.TrimSuffix(filepath.Base(p), storage.FileExt) + ext
	dst := filepath.Join(f.out, name)

	// #nosec G304 -- destination is under the user-chosen output directory.
	file, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}
	if err := e.writeListing(file, f.format, filepath.Base(p), sf); err != nil {
		_ = file.Close()
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", dst, err)
	}

	return len(sf.MACs), nil
}

func (e *env) writeListing(w io.Writer, format, source string, sf persistence.ScanFile) error {
	at := e.opts.Now()
	if format == formatCSV {
		return storage.WriteCSV(w, sf.MACs, at)
	}

	return storage.WriteText(w, source, sf.MACs, at)
}
