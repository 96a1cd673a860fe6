package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// StreamTransport runs the line protocol over plain readers and writers such
// as stdout or a file.
type StreamTransport struct {
	name string
	r    io.Reader
	w    io.Writer

	writeMu sync.Mutex
	readMu  sync.Mutex
	buf     lineBuffer
}

func NewStreamTransport(name string, r io.Reader, w io.Writer) *StreamTransport {
	return &StreamTransport{name: name, r: r, w: w}
}

func (t *StreamTransport) Name() string {
	return t.name
}

func (t *StreamTransport) Connect(ctx context.Context) error {
	return ctx.Err()
}

// Close leaves the underlying streams to their owner.
func (t *StreamTransport) Close() error {
	return nil
}

func (t *StreamTransport) ReadLine(ctx context.Context) (string, error) {
	if t.r == nil {
		return "", ErrNotConnected
	}

	t.readMu.Lock()
	defer t.readMu.Unlock()

	return t.buf.readLine(ctx, t.r)
}

func (t *StreamTransport) WriteLine(ctx context.Context, line string) error {
	if t.w == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := writeLine(ctx, t.w, line); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	return nil
}
