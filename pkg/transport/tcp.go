package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultDialTimeout bounds a single connect attempt.
const DefaultDialTimeout = 5 * time.Second

// TCPDialer dials plain TCP collectors.
type TCPDialer struct {
	Network string
	Address string
	Timeout time.Duration
}

// NewTCPDialer creates a TCPDialer from a tcp:// URL.
func NewTCPDialer(u *url.URL) (*TCPDialer, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", u.String())
	}
	if _, _, err := net.SplitHostPort(u.Host); err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", u.Host, err)
	}
	return &TCPDialer{
		Network: strings.ToLower(u.Scheme),
		Address: u.Host,
		Timeout: DefaultDialTimeout,
	}, nil
}

// Dial implements Dialer.
func (d *TCPDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := &net.Dialer{Timeout: d.Timeout}
	network := d.Network
	if network == "" {
		network = "tcp"
	}
	conn, err := dialer.DialContext(ctx, network, d.Address)
	if err != nil {
		return nil, err
	}
	return NewStreamConn(conn), nil
}

// StreamConn adapts a net.Conn. Each Send writes the whole payload.
type StreamConn struct {
	conn   net.Conn
	closed atomic.Bool
}

// NewStreamConn wraps conn.
func NewStreamConn(conn net.Conn) *StreamConn {
	return &StreamConn{conn: conn}
}

// Send implements Conn.
func (c *StreamConn) Send(ctx context.Context, payload []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetWriteDeadline(time.Unix(1, 0))
	})
	defer stop()
	_, err := c.conn.Write(payload)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// LocalAddr implements Conn.
func (c *StreamConn) LocalAddr() string {
	return c.conn.LocalAddr().String()
}

// Close implements Conn.
func (c *StreamConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}
