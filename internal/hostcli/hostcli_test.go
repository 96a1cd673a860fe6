package hostcli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skobkin/macsniff/internal/capture"
	"github.com/skobkin/macsniff/internal/dump"
	"github.com/skobkin/macsniff/internal/notifications"
	"github.com/skobkin/macsniff/internal/storage"
	"github.com/skobkin/macsniff/internal/transport"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

var (
	macA = capture.MAC{0xaa, 0xbb, 0xcc, 0x00, 0x00, 0x01}
	macB = capture.MAC{0xaa, 0xbb, 0xcc, 0x00, 0x00, 0x02}
	macC = capture.MAC{0xaa, 0xbb, 0xcc, 0x00, 0x00, 0x03}
)

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []notifications.Payload
}

func (n *recordingNotifier) Send(p notifications.Payload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, p)
}

func (n *recordingNotifier) all() []notifications.Payload {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Payload(nil), n.payloads...)
}

// syncBuffer is read while a command is still writing to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type cliHarness struct {
	t        *testing.T
	db       string
	notifier *recordingNotifier
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(home, "cache"))

	return &cliHarness{
		t:        t,
		db:       filepath.Join(t.TempDir(), "archive.db"),
		notifier: &recordingNotifier{},
	}
}

func (h *cliHarness) runContext(ctx context.Context, out io.Writer, args ...string) error {
	cmd := NewRootCmd(Options{Notifier: h.notifier, Now: func() time.Time { return fixedNow }})
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--db", h.db}, args...))

	return cmd.ExecuteContext(ctx)
}

func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	err := h.runContext(context.Background(), &out, args...)

	return out.String(), err
}

func writeScanFile(t *testing.T, dir, name string, macs ...capture.MAC) string {
	t.Helper()
	var buf bytes.Buffer
	if _, err := storage.EncodeRecords(&buf, macs); err != nil {
		t.Fatalf("encode records: %v", err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write scan file: %v", err)
	}

	return p
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := NewRootCmd(Options{})
	if root.Short == "" || root.Long == "" {
		t.Fatalf("expected root help text to be set")
	}

	found := make(map[string]bool)
	for _, c := range root.Commands() {
		found[c.Name()] = true
	}
	for _, name := range []string{"receive", "convert", "import", "stats", "watch"} {
		if !found[name] {
			t.Fatalf("expected command %q to be registered", name)
		}
	}
	for _, flag := range []string{"db", "config", "log-level"} {
		if f := root.PersistentFlags().Lookup(flag); f == nil || f.Usage == "" {
			t.Fatalf("expected persistent flag --%s with usage", flag)
		}
	}
}

func TestConvertText(t *testing.T) {
	h := newHarness(t)
	in := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "converted")
	writeScanFile(t, in, "scan_1.bin", macA, macB)
	if err := os.WriteFile(filepath.Join(in, "broken.bin"), []byte{0x01, 0x00}, 0o600); err != nil {
		t.Fatalf("write broken file: %v", err)
	}

	out, err := h.run("convert", in, "--out", outDir)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(out, "Skipping broken.bin: file too short") {
		t.Fatalf("expected short file to be skipped, got %q", out)
	}
	if !strings.Contains(out, "Conversion complete: 1 files processed, 2 MAC addresses extracted") {
		t.Fatalf("unexpected summary: %q", out)
	}

	raw, err := os.ReadFile(filepath.Join(outDir, "scan_1.txt"))
	if err != nil {
		t.Fatalf("read listing: %v", err)
	}
	want := "# MAC addresses extracted from scan_1.bin\n" +
		"# Extracted on 2025-01-02 03:04:05\n" +
		"# Total MAC addresses: 2\n\n" +
		"aa:bb:cc:00:00:01\naa:bb:cc:00:00:02\n"
	if string(raw) != want {
		t.Fatalf("listing mismatch:\ngot  %q\nwant %q", raw, want)
	}
}

func TestConvertCSV(t *testing.T) {
	h := newHarness(t)
	in := t.TempDir()
	outDir := t.TempDir()
	p := writeScanFile(t, in, "scan_7.bin", macC)

	if _, err := h.run("convert", p, "--out", outDir, "--format", "csv"); err != nil {
		t.Fatalf("convert: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(outDir, "scan_7.csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := "index,mac_address,timestamp\n0,aa:bb:cc:00:00:03," + strconv.FormatInt(fixedNow.Unix(), 10) + "\n"
	if string(raw) != want {
		t.Fatalf("csv mismatch: got %q want %q", raw, want)
	}
}

func TestConvertRejectsUnknownFormat(t *testing.T) {
	h := newHarness(t)
	p := writeScanFile(t, t.TempDir(), "scan_1.bin", macA)
	if _, err := h.run("convert", p, "--format", "xml"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestImportStatsAndClear(t *testing.T) {
	h := newHarness(t)
	in := t.TempDir()
	writeScanFile(t, in, "scan_1.bin", macA, macB)
	writeScanFile(t, in, "scan_2.bin", macA)

	out, err := h.run("import", in)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Archived 2 files (0 skipped), 3 sightings, 2 new addresses") {
		t.Fatalf("unexpected import output: %q", out)
	}

	out, err = h.run("import", in)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if !strings.Contains(out, "Archived 0 files (2 skipped)") {
		t.Fatalf("expected re-import to skip files, got %q", out)
	}

	out, err = h.run("stats", "--top", "1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Imports:      2", "Scan files:   2", "Unique MACs:  2", "aa:bb:cc:00:00:01  2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stats output missing %q:\n%s", want, out)
		}
	}

	if _, err := h.run("stats", "clear"); err == nil {
		t.Fatalf("expected clear without --yes to fail")
	}
	if _, err := h.run("stats", "clear", "--yes"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, err = h.run("stats")
	if err != nil {
		t.Fatalf("stats after clear: %v", err)
	}
	if !strings.Contains(out, "Imports:      0") || !strings.Contains(out, "Unique MACs:  0") {
		t.Fatalf("expected empty archive, got:\n%s", out)
	}
}

type mapSource map[string][]byte

func (m mapSource) List() ([]string, error) {
	out := make([]string, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (m mapSource) Read(p string) ([]byte, error) {
	return m[p], nil
}

func encode(t *testing.T, macs ...capture.MAC) []byte {
	t.Helper()
	var buf bytes.Buffer
	if _, err := storage.EncodeRecords(&buf, macs); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

// serveDump accepts one connection and writes a complete session preceded by
// boot noise.
func serveDump(t *testing.T, src dump.Source) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		write := dump.LineWriterFunc(func(line string) error {
			_, err := io.WriteString(conn, line+"\r\n")
			return err
		})
		_ = write.WriteLine("I (312) boot: ESP-IDF v5.1")
		_, _ = dump.NewWriter(write, dump.Config{ChunkSize: 4}, nil, nil, nil).Dump(context.Background(), src)
	}()

	return ln.Addr().String()
}

func TestReceiveOverTCP(t *testing.T) {
	h := newHarness(t)
	first := encode(t, macA, macB)
	second := encode(t, macC)
	addr := serveDump(t, mapSource{
		"/spiffs/scan_1.bin": first,
		"/spiffs/scan_2.bin": second,
	})
	outDir := t.TempDir()

	out, err := h.run("receive", "--tcp", addr, "--out", outDir, "--timeout", "5s")
	if err != nil {
		t.Fatalf("receive: %v\n%s", err, out)
	}

	dir := filepath.Join(outDir, "dump_20250102_030405")
	for name, want := range map[string][]byte{"scan_1.bin": first, "scan_2.bin": second} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("%s: got %x want %x", name, got, want)
		}
	}
	if !strings.Contains(out, "Received 2/2 files") {
		t.Fatalf("unexpected receive summary: %q", out)
	}
	if !strings.Contains(out, "3 new addresses") {
		t.Fatalf("expected archive import in output: %q", out)
	}

	payloads := h.notifier.all()
	if len(payloads) != 1 || !strings.Contains(payloads[0].Content, "2 files") {
		t.Fatalf("unexpected notifications: %+v", payloads)
	}
}

func TestReceiveNoImportNoNotify(t *testing.T) {
	h := newHarness(t)
	addr := serveDump(t, mapSource{"/spiffs/scan_1.bin": encode(t, macA)})

	out, err := h.run("receive", "--tcp", addr, "--out", t.TempDir(), "--timeout", "5s", "--no-import", "--no-notify")
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if strings.Contains(out, "Archived") {
		t.Fatalf("expected no archive import, got %q", out)
	}
	if got := len(h.notifier.all()); got != 0 {
		t.Fatalf("expected no notifications, got %d", got)
	}
}

func TestReceiveRequiresInput(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run("receive"); err == nil {
		t.Fatalf("expected missing input error")
	}
}

func TestReadSessionIncomplete(t *testing.T) {
	server, client := net.Pipe()
	go func() {
		_, _ = io.WriteString(server, "MAC_SNIFF_DUMP_BEGIN\nNUM_FILES:1\nFILE_BEGIN:/spiffs/scan_1.bin\nFILE_SIZE:4\nCHUNK:01000000\nFILE_END\n")
		_ = server.Close()
	}()

	res, err := readSession(context.Background(), transport.NewTCPTransportConn(client))
	if !errors.Is(err, dump.ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if len(res.Files) != 1 || len(res.Files[0].Data) != 4 {
		t.Fatalf("expected the finished file to survive, got %+v", res.Files)
	}
}

func TestSplitHostPort(t *testing.T) {
	cases := []struct {
		raw      string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{raw: "192.168.4.1", wantHost: "192.168.4.1", wantPort: 4404},
		{raw: "device.local:9000", wantHost: "device.local", wantPort: 9000},
		{raw: "host:0", wantErr: true},
		{raw: "host:abc", wantErr: true},
	}
	for _, tc := range cases {
		host, port, err := splitHostPort(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.raw, err)
		}
		if host != tc.wantHost || port != tc.wantPort {
			t.Fatalf("%s: got %s:%d want %s:%d", tc.raw, host, port, tc.wantHost, tc.wantPort)
		}
	}
}

func TestDirWatcherSettles(t *testing.T) {
	w := newDirWatcher(100 * time.Millisecond)
	base := time.Unix(1_700_000_000, 0)
	w.touch("a", base)
	w.touch("b", base.Add(80*time.Millisecond))

	if got := w.settled(base.Add(50 * time.Millisecond)); len(got) != 0 {
		t.Fatalf("expected nothing settled yet, got %v", got)
	}
	got := w.settled(base.Add(120 * time.Millisecond))
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected only a to settle, got %v", got)
	}
	w.forget("b")
	if got := w.settled(base.Add(time.Second)); len(got) != 0 {
		t.Fatalf("expected forgotten path to stay out, got %v", got)
	}
}

func waitFor(t *testing.T, buf *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), want) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q, output:\n%s", want, buf.String())
}

func TestWatchArchivesNewFiles(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	staging := t.TempDir()
	writeScanFile(t, dir, "scan_0.bin", macA)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var out syncBuffer
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.runContext(ctx, &out, "watch", dir, "--quiet", "50ms", "--existing")
	}()

	waitFor(t, &out, "Archived scan_0.bin: 1 addresses, 1 new")
	waitFor(t, &out, "Watching "+dir)

	p := writeScanFile(t, staging, "scan_1.bin", macA, macB)
	if err := os.Rename(p, filepath.Join(dir, "scan_1.bin")); err != nil {
		t.Fatalf("move scan file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600); err != nil {
		t.Fatalf("write unrelated file: %v", err)
	}
	waitFor(t, &out, "Archived scan_1.bin: 2 addresses, 1 new")

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("watch did not stop")
	}

	if got := len(h.notifier.all()); got != 2 {
		t.Fatalf("expected 2 notifications, got %d", got)
	}
}
