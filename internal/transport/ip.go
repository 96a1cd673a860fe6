package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

const DefaultTCPPort = 4404

// TCPTransport carries dump lines over a TCP socket, for emulators without a UART.
type TCPTransport struct {
	host string
	port int

	mu      sync.Mutex
	conn    net.Conn
	writeMu sync.Mutex
	readMu  sync.Mutex
	buf     lineBuffer
}

func NewTCPTransport(host string, port int) *TCPTransport {
	if port == 0 {
		port = DefaultTCPPort
	}

	return &TCPTransport{host: host, port: port}
}

// NewTCPTransportConn wraps an already accepted connection.
func NewTCPTransportConn(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn}
}

func (t *TCPTransport) Name() string {
	return "tcp"
}

func (t *TCPTransport) StatusTarget() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn.RemoteAddr().String()
	}
	if t.host == "" {
		return ""
	}

	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

func (t *TCPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := ""
	if t.host != "" {
		target = net.JoinHostPort(t.host, strconv.Itoa(t.port))
	}
	logger := transportLogger("tcp", target)

	if t.conn != nil {
		logger.Debug("connect skipped: already connected")

		return nil
	}
	if t.host == "" {
		logger.Warn("connect failed: host is empty")

		return errors.New("tcp host is empty")
	}

	dialer := net.Dialer{Timeout: 6 * time.Second}
	logger.Info("connecting")
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		logger.Warn("connect failed", "error", err)

		return fmt.Errorf("dial tcp: %w", err)
	}
	t.conn = conn
	logger.Info("connected", "remote", conn.RemoteAddr().String())

	return nil
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		transportLogger("tcp", "").Warn("close failed", "error", err)

		return err
	}

	return nil
}

func (t *TCPTransport) ReadLine(ctx context.Context) (string, error) {
	conn, err := t.currentConn()
	if err != nil {
		return "", err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}

	t.readMu.Lock()
	defer t.readMu.Unlock()

	return t.buf.readLine(ctx, conn)
}

func (t *TCPTransport) WriteLine(ctx context.Context, line string) error {
	conn, err := t.currentConn()
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
	}
	if err := writeLine(ctx, conn, line); err != nil {
		transportLogger("tcp", conn.RemoteAddr().String()).Warn("write failed", "line", linePreview(line), "error", err)
		return fmt.Errorf("write line: %w", err)
	}

	return nil
}

func (t *TCPTransport) currentConn() (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, ErrNotConnected
	}

	return t.conn, nil
}
