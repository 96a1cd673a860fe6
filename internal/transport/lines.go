package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
)

const lineTerminator = "\r\n"

// MaxLineLen is the longest line, terminator excluded, that readers accept.
const MaxLineLen = 4096

var (
	ErrNotConnected = errors.New("transport is not connected")
	ErrLineTooLong  = errors.New("line exceeds maximum length")
)

// lineBuffer assembles lines from a reader that may return partial data or
// zero bytes on a read timeout.
type lineBuffer struct {
	pending []byte
	chunk   [256]byte
}

func (b *lineBuffer) readLine(ctx context.Context, r io.Reader) (string, error) {
	for {
		if i := bytes.IndexByte(b.pending, '\n'); i >= 0 {
			line := bytes.TrimRight(b.pending[:i], "\r")
			out := string(line)
			b.pending = append(b.pending[:0], b.pending[i+1:]...)
			return out, nil
		}
		if len(b.pending) > MaxLineLen+len(lineTerminator) {
			b.pending = b.pending[:0]
			return "", ErrLineTooLong
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := r.Read(b.chunk[:])
		if n > 0 {
			b.pending = append(b.pending, b.chunk[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(b.pending) > 0 {
				out := string(bytes.TrimRight(b.pending, "\r"))
				b.pending = b.pending[:0]
				return out, nil
			}
			return "", err
		}
	}
}

func writeLine(ctx context.Context, w io.Writer, line string) error {
	return writeFull(ctx, w, []byte(line+lineTerminator))
}

func writeFull(ctx context.Context, w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.Write(buf[written:])
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		written += n
	}

	return nil
}
