package dump

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/skobkin/macsniff/internal/transport"
)

type memSource struct {
	order []string
	files map[string][]byte
	fail  map[string]bool
}

func (s *memSource) List() ([]string, error) {
	return s.order, nil
}

func (s *memSource) Read(p string) ([]byte, error) {
	if s.fail[p] {
		return nil, errors.New("read failed")
	}
	return s.files[p], nil
}

type recordingLines struct {
	lines []string
}

func (r *recordingLines) WriteLine(line string) error {
	r.lines = append(r.lines, line)
	return nil
}

type countingSleeper struct {
	calls int
	total time.Duration
}

func (s *countingSleeper) Sleep(_ context.Context, d time.Duration) bool {
	s.calls++
	s.total += d
	return true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seq(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestDumpWritesProtocol(t *testing.T) {
	src := &memSource{
		order: []string{"/spiffs/scan_1.bin", "/spiffs/scan_2.bin"},
		files: map[string][]byte{
			"/spiffs/scan_1.bin": {0x01, 0x00, 0x00, 0x00, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
			"/spiffs/scan_2.bin": {},
		},
	}
	out := &recordingLines{}
	w := NewWriter(out, Config{ChunkSize: 64}, nil, nil, discardLogger())

	sum, err := w.Dump(context.Background(), src)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}

	want := []string{
		"MAC_SNIFF_DUMP_BEGIN",
		"NUM_FILES:2",
		"FILE_BEGIN:/spiffs/scan_1.bin",
		"FILE_SIZE:10",
		"CHUNK:01000000aabbccddeeff",
		"FILE_END",
		"FILE_BEGIN:/spiffs/scan_2.bin",
		"FILE_SIZE:0",
		"FILE_END",
		"MAC_SNIFF_DUMP_END",
		"TOTAL_BYTES:10",
	}
	if strings.Join(out.lines, "\n") != strings.Join(want, "\n") {
		t.Fatalf("lines:\ngot  %q\nwant %q", out.lines, want)
	}
	if sum.Files != 2 || sum.TotalBytes != 10 || sum.Skipped != 0 {
		t.Fatalf("summary: got %+v", sum)
	}
}

func TestDumpChunksAtMost64Bytes(t *testing.T) {
	src := &memSource{
		order: []string{"/f"},
		files: map[string][]byte{"/f": seq(150)},
	}
	out := &recordingLines{}
	sleeper := &countingSleeper{}
	w := NewWriter(out, DefaultConfig(), sleeper, nil, discardLogger())

	if _, err := w.Dump(context.Background(), src); err != nil {
		t.Fatalf("dump: %v", err)
	}

	var chunks []string
	for _, l := range out.lines {
		if strings.HasPrefix(l, ChunkPrefix) {
			chunks = append(chunks, strings.TrimPrefix(l, ChunkPrefix))
		}
	}
	if len(chunks) != 3 {
		t.Fatalf("chunks: got %d want 3", len(chunks))
	}
	for i, wantLen := range []int{128, 128, 44} {
		if len(chunks[i]) != wantLen {
			t.Fatalf("chunk %d hex length: got %d want %d", i, len(chunks[i]), wantLen)
		}
		if strings.ToLower(chunks[i]) != chunks[i] {
			t.Fatalf("chunk %d not lowercase: %q", i, chunks[i])
		}
	}
	if sleeper.calls != 3 || sleeper.total != 30*time.Millisecond {
		t.Fatalf("chunk delay: got %d calls %v total", sleeper.calls, sleeper.total)
	}
}

func TestDumpSkipsUnreadableFiles(t *testing.T) {
	src := &memSource{
		order: []string{"/a", "/b", "/c"},
		files: map[string][]byte{"/a": seq(4), "/c": seq(6)},
		fail:  map[string]bool{"/b": true},
	}
	out := &recordingLines{}
	w := NewWriter(out, Config{ChunkSize: 64}, nil, nil, discardLogger())

	sum, err := w.Dump(context.Background(), src)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if sum.Files != 2 || sum.Skipped != 1 || sum.TotalBytes != 10 {
		t.Fatalf("summary: got %+v", sum)
	}
	for _, l := range out.lines {
		if l == "FILE_BEGIN:/b" {
			t.Fatalf("unreadable file was announced")
		}
	}
	if out.lines[1] != "NUM_FILES:2" {
		t.Fatalf("file count: got %q want NUM_FILES:2", out.lines[1])
	}
	if last := out.lines[len(out.lines)-1]; last != "TOTAL_BYTES:10" {
		t.Fatalf("trailer: got %q", last)
	}
}

func TestDumpLargestChunkCrossesTransport(t *testing.T) {
	data := seq(MaxChunkSize + 10)
	src := &memSource{order: []string{"/big"}, files: map[string][]byte{"/big": data}}

	var wire bytes.Buffer
	tr := transport.NewStreamTransport("wire", &wire, &wire)
	ctx := context.Background()
	out := LineWriterFunc(func(l string) error { return tr.WriteLine(ctx, l) })

	w := NewWriter(out, Config{ChunkSize: MaxChunkSize + 100}, nil, nil, discardLogger())
	if _, err := w.Dump(ctx, src); err != nil {
		t.Fatalf("dump: %v", err)
	}

	d := NewDecoder()
	for !d.Done() {
		line, err := tr.ReadLine(ctx)
		if err != nil {
			t.Fatalf("read line: %v", err)
		}
		if len(line) > transport.MaxLineLen {
			t.Fatalf("line length %d exceeds %d", len(line), transport.MaxLineLen)
		}
		if _, err := d.Feed(line); err != nil {
			t.Fatalf("feed: %v", err)
		}
	}
	res := d.Result()
	if len(res.Files) != 1 || !bytes.Equal(res.Files[0].Data, data) {
		t.Fatalf("decoded files: got %d", len(res.Files))
	}
}

func TestDumpAbortsOnChannelFailure(t *testing.T) {
	boom := errors.New("port gone")
	out := LineWriterFunc(func(string) error { return boom })
	w := NewWriter(out, DefaultConfig(), nil, nil, discardLogger())

	if _, err := w.Dump(context.Background(), &memSource{}); !errors.Is(err, boom) {
		t.Fatalf("error: got %v want %v", err, boom)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	files := map[string][]byte{
		"/spiffs/scan_1.bin": seq(100),
		"/spiffs/scan_2.bin": seq(16),
	}
	src := &memSource{order: []string{"/spiffs/scan_1.bin", "/spiffs/scan_2.bin"}, files: files}

	var buf bytes.Buffer
	out := LineWriterFunc(func(l string) error {
		buf.WriteString(l + "\r\n")
		return nil
	})
	if _, err := NewWriter(out, Config{ChunkSize: 64}, nil, nil, discardLogger()).Dump(context.Background(), src); err != nil {
		t.Fatalf("dump: %v", err)
	}

	stream := "boot: esp32 rst\nnoise line\n" + buf.String()
	res, err := Decode(strings.NewReader(stream))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.ExpectedFiles != 2 || res.TotalBytes != 116 {
		t.Fatalf("result: got expected=%d total=%d", res.ExpectedFiles, res.TotalBytes)
	}
	if len(res.Files) != 2 {
		t.Fatalf("files: got %d want 2", len(res.Files))
	}
	for _, f := range res.Files {
		if !bytes.Equal(f.Data, files[f.Path]) {
			t.Fatalf("file %s: data mismatch", f.Path)
		}
		if !f.SizeMatches() {
			t.Fatalf("file %s: declared %d got %d", f.Path, f.Declared, len(f.Data))
		}
	}
}

func TestDecodeWithoutTrailer(t *testing.T) {
	stream := "MAC_SNIFF_DUMP_BEGIN\nNUM_FILES:1\nFILE_BEGIN:/x\nFILE_SIZE:2\nCHUNK:abcd\nFILE_END\nMAC_SNIFF_DUMP_END\n"
	res, err := Decode(strings.NewReader(stream))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TotalBytes != -1 {
		t.Fatalf("total bytes: got %d want -1", res.TotalBytes)
	}
	if len(res.Files) != 1 || !bytes.Equal(res.Files[0].Data, []byte{0xab, 0xcd}) {
		t.Fatalf("files: got %+v", res.Files)
	}
}

func TestDecodeIncompleteStream(t *testing.T) {
	stream := "MAC_SNIFF_DUMP_BEGIN\nNUM_FILES:1\nFILE_BEGIN:/x\n"
	if _, err := Decode(strings.NewReader(stream)); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("error: got %v want ErrIncomplete", err)
	}
}

func TestDecodeRejectsBadHex(t *testing.T) {
	stream := "MAC_SNIFF_DUMP_BEGIN\nFILE_BEGIN:/x\nCHUNK:zz\n"
	if _, err := Decode(strings.NewReader(stream)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("error: got %v want ErrMalformed", err)
	}
}
