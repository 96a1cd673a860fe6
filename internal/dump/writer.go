package dump

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/skobkin/macsniff/internal/bus"
	"github.com/skobkin/macsniff/internal/events"
)

const DefaultChunkDelay = 10 * time.Millisecond

// Source is the store being exfiltrated.
type Source interface {
	List() ([]string, error)
	Read(path string) ([]byte, error)
}

// Sleeper paces chunks so slow receivers keep up.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) bool
}

type Config struct {
	ChunkSize  int
	ChunkDelay time.Duration
}

func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize, ChunkDelay: DefaultChunkDelay}
}

// Summary is what a finished session reports.
type Summary struct {
	Files      int
	Skipped    int
	TotalBytes int64
}

type Writer struct {
	out    LineWriter
	cfg    Config
	sleep  Sleeper
	pub    bus.Publisher
	logger *slog.Logger
}

func NewWriter(out LineWriter, cfg Config, sleep Sleeper, pub bus.Publisher, logger *slog.Logger) *Writer {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkSize > MaxChunkSize {
		cfg.ChunkSize = MaxChunkSize
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	}
	if pub == nil {
		pub = bus.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{out: out, cfg: cfg, sleep: sleep, pub: pub, logger: logger}
}

// Dump streams every file of src. Files that cannot be read are skipped before
// the header, so NUM_FILES and TOTAL_BYTES only cover what is sent; a failing
// channel aborts the session.
func (w *Writer) Dump(ctx context.Context, src Source) (Summary, error) {
	var sum Summary

	paths, err := src.List()
	if err != nil {
		return sum, fmt.Errorf("list files: %w", err)
	}

	type entry struct {
		path string
		data []byte
	}
	files := make([]entry, 0, len(paths))
	for _, p := range paths {
		data, err := src.Read(p)
		if err != nil {
			w.logger.Warn("skipping unreadable file", "path", p, "error", err)
			sum.Skipped++
			continue
		}
		files = append(files, entry{path: p, data: data})
	}

	if err := w.line(SessionBegin); err != nil {
		return sum, err
	}
	if err := w.line(NumFilesPrefix + strconv.Itoa(len(files))); err != nil {
		return sum, err
	}

	for _, f := range files {
		if err := w.file(ctx, f.path, f.data); err != nil {
			return sum, err
		}
		sum.Files++
		sum.TotalBytes += int64(len(f.data))
	}

	if err := w.line(SessionEnd); err != nil {
		return sum, err
	}
	if err := w.line(TotalBytesPrefix + strconv.FormatInt(sum.TotalBytes, 10)); err != nil {
		return sum, err
	}

	w.logger.Info("dump finished", "files", sum.Files, "skipped", sum.Skipped, "total_bytes", sum.TotalBytes)
	w.pub.Publish(events.TopicDumpFinished, events.DumpFinished{
		Files:      sum.Files,
		Skipped:    sum.Skipped,
		TotalBytes: sum.TotalBytes,
	})

	return sum, nil
}

func (w *Writer) file(ctx context.Context, p string, data []byte) error {
	if err := w.line(FileBeginPrefix + p); err != nil {
		return err
	}
	if err := w.line(FileSizePrefix + strconv.Itoa(len(data))); err != nil {
		return err
	}

	for off := 0; off < len(data); off += w.cfg.ChunkSize {
		end := min(off+w.cfg.ChunkSize, len(data))
		if err := w.line(ChunkPrefix + hex.EncodeToString(data[off:end])); err != nil {
			return err
		}
		if w.cfg.ChunkDelay > 0 && w.sleep != nil {
			if !w.sleep.Sleep(ctx, w.cfg.ChunkDelay) {
				return ctx.Err()
			}
		}
	}

	return w.line(FileEnd)
}

func (w *Writer) line(s string) error {
	if err := w.out.WriteLine(s); err != nil {
		return fmt.Errorf("write dump line: %w", err)
	}
	w.pub.Publish(events.TopicDumpLine, events.DumpLine{Line: s})

	return nil
}
