package hostcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/skobkin/macsniff/internal/dump"
	"github.com/skobkin/macsniff/internal/notifications"
	"github.com/skobkin/macsniff/internal/persistence"
	"github.com/skobkin/macsniff/internal/transport"
)

type receiveFlags struct {
	port     string
	baud     int
	tcp      string
	listen   string
	out      string
	timeout  time.Duration
	noImport bool
	noNotify bool
}

func newReceiveCmd(e *env) *cobra.Command {
	f := &receiveFlags{}
	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Receive a dump session from the device",
		Long: `Receive a dump session and write every scan file it carries.

The device frames a dump with MAC_SNIFF_DUMP_BEGIN / MAC_SNIFF_DUMP_END and
sends each file as hex chunks. Anything on the line before the session starts,
such as boot logs, is ignored. Received files land in a timestamped directory
under --out and are imported into the archive unless --no-import is given.`,
		Example: `  # Serial port, default baud rate
  macsniff-host receive --port /dev/ttyUSB0

  # Connect to a device that serves its dump over TCP
  macsniff-host receive --tcp 192.168.4.1:4404

  # Wait for the device to connect to us
  macsniff-host receive --listen :4404 --timeout 2m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.receive(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.port, "port", "", "serial port to read from")
	cmd.Flags().IntVar(&f.baud, "baud", 0, "serial baud rate (default: config, then 115200)")
	cmd.Flags().StringVar(&f.tcp, "tcp", "", "device address to dial, host[:port]")
	cmd.Flags().StringVar(&f.listen, "listen", "", "address to accept one device connection on")
	cmd.Flags().StringVar(&f.out, "out", "", "directory for received files (default: data dir)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "give up after this long (0 waits forever)")
	cmd.Flags().BoolVar(&f.noImport, "no-import", false, "do not import received files into the archive")
	cmd.Flags().BoolVar(&f.noNotify, "no-notify", false, "do not show a desktop notification")
	cmd.MarkFlagsMutuallyExclusive("port", "tcp", "listen")

	return cmd
}

func (e *env) receive(cmd *cobra.Command, f *receiveFlags) error {
	ctx := cmd.Context()
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	tr, err := e.openReceiveTransport(ctx, f)
	if err != nil {
		return err
	}
	defer func() { _ = tr.Close() }()

	w := out(cmd)
	fmt.Fprintf(w, "Waiting for dump on %s...\n", transportTarget(tr))

	res, recvErr := readSession(ctx, tr)
	switch {
	case recvErr == nil:
	case errors.Is(recvErr, dump.ErrIncomplete) && len(res.Files) > 0:
		e.logger.Warn("dump incomplete, keeping received files", "files", len(res.Files))
	default:
		return recvErr
	}

	dir := f.out
	if dir == "" {
		dir = e.dumpsDir()
	}
	dir = filepath.Join(dir, "dump_"+e.opts.Now().Format("20060102_150405"))
	files, written, err := writeReceived(dir, res.Files, w)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Received %d/%d files, %s into %s\n", len(res.Files), res.ExpectedFiles, humanize.IBytes(uint64(written)), dir) // #nosec G115
	if res.TotalBytes >= 0 && res.TotalBytes != written {
		fmt.Fprintf(w, "Warning: device reported %d bytes, received %d\n", res.TotalBytes, written)
	}

	summary := fmt.Sprintf("%d files, %s", len(res.Files), humanize.IBytes(uint64(written))) // #nosec G115
	if !f.noImport {
		imported, err := e.importFiles(ctx, "receive:"+transportTarget(tr), files)
		if err != nil {
			return err
		}
		printImport(w, imported)
		summary = fmt.Sprintf("%s, %d new addresses", summary, imported.NewMACs)
	}

	if !f.noNotify {
		e.opts.Notifier.Send(notifications.Payload{Title: "macsniff dump received", Content: summary})
	}

	return recvErr
}

func (e *env) openReceiveTransport(ctx context.Context, f *receiveFlags) (transport.Transport, error) {
	switch {
	case f.listen != "":
		return acceptOne(ctx, f.listen)
	case f.tcp != "":
		host, port, err := splitHostPort(f.tcp)
		if err != nil {
			return nil, err
		}
		tr := transport.NewTCPTransport(host, port)
		if err := tr.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect %s: %w", f.tcp, err)
		}
		return tr, nil
	default:
		port := f.port
		if port == "" {
			port = e.cfg.Dump.SerialPort
		}
		if port == "" {
			return nil, errors.New("no input: pass --port, --tcp or --listen")
		}
		baud := f.baud
		if baud == 0 {
			baud = e.cfg.Dump.SerialBaud
		}
		tr := transport.NewSerialTransport(port, baud)
		if err := tr.Connect(ctx); err != nil {
			return nil, fmt.Errorf("open serial %s: %w", port, err)
		}
		return tr, nil
	}
}

func acceptOne(ctx context.Context, addr string) (transport.Transport, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	defer func() { _ = ln.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept: %w", err)
	}

	return transport.NewTCPTransportConn(conn), nil
}

func splitHostPort(raw string) (string, int, error) {
	if !strings.Contains(raw, ":") {
		return raw, transport.DefaultTCPPort, nil
	}
	host, portRaw, err := net.SplitHostPort(raw)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address %q: %w", raw, err)
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portRaw)
	}

	return host, port, nil
}

func transportTarget(tr transport.Transport) string {
	if r, ok := tr.(transport.StatusTargetResolver); ok {
		if target := r.StatusTarget(); target != "" {
			return target
		}
	}

	return tr.Name()
}

// readSession feeds lines to a decoder until the trailer. A closed stream or
// an expired context after MAC_SNIFF_DUMP_BEGIN yields ErrIncomplete with the
// files received so far.
func readSession(ctx context.Context, tr transport.Transport) (dump.Result, error) {
	dec := dump.NewDecoder()
	for {
		line, err := tr.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return dec.Result(), dump.ErrIncomplete
			}
			return dec.Result(), fmt.Errorf("read line: %w", err)
		}

		done, err := dec.Feed(line)
		if err != nil {
			return dec.Result(), err
		}
		if done {
			return dec.Result(), nil
		}
	}
}

func writeReceived(dir string, files []dump.File, w io.Writer) ([]string, int64, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, 0, fmt.Errorf("create output dir: %w", err)
	}

	var (
		paths   []string
		written int64
	)
	for _, f := range files {
		name := path.Base(f.Path)
		if name == "." || name == "/" {
			continue
		}
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, f.Data, 0o600); err != nil {
			return nil, 0, fmt.Errorf("write %s: %w", p, err)
		}
		paths = append(paths, p)
		written += int64(len(f.Data))

		status := "ok"
		if !f.SizeMatches() {
			status = fmt.Sprintf("size mismatch, declared %d", f.Declared)
		}
		fmt.Fprintf(w, "  %s: %d bytes (%s)\n", name, len(f.Data), status)
	}

	return paths, written, nil
}

func printImport(w io.Writer, res persistence.ImportResult) {
	fmt.Fprintf(w, "Archived %d files (%d skipped), %d sightings, %d new addresses\n",
		res.Files, res.Skipped, res.Sightings, res.NewMACs)
}
