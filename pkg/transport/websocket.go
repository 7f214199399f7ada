package transport

import (
	"context"
	"net"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"
)

// WSDialer sends each payload as one binary WebSocket message.
type WSDialer struct {
	URL    string
	Origin string
}

// NewWSDialer creates a WSDialer for a ws:// or wss:// URL.
func NewWSDialer(rawURL string) (*WSDialer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	origin := "http://localhost/"
	if u.Scheme == "wss" {
		origin = "https://localhost/"
	}
	return &WSDialer{URL: rawURL, Origin: origin}, nil
}

// Dial implements Dialer.
func (d *WSDialer) Dial(ctx context.Context) (Conn, error) {
	config, err := websocket.NewConfig(d.URL, d.Origin)
	if err != nil {
		return nil, err
	}
	timeout := DefaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	config.Dialer = &net.Dialer{Timeout: timeout}
	conn, err := websocket.DialConfig(config)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		conn.Close()
		return nil, ctx.Err()
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn   *websocket.Conn
	closed atomic.Bool
}

func (c *wsConn) Send(ctx context.Context, payload []byte) error {
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
	err := websocket.Message.Send(c.conn, payload)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *wsConn) LocalAddr() string {
	return c.conn.LocalAddr().String()
}

func (c *wsConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}
