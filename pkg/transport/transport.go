// Package transport connects the device to remote collectors.
//
// A Dialer opens a Conn, and a Conn sends whole payloads. The loops built on
// top of it own all retry logic: a Conn that fails a Send is closed and
// discarded, never reused.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrUnsupportedScheme is returned by NewDialer for unknown URL schemes.
	ErrUnsupportedScheme = errors.New("transport: unsupported scheme")
	// ErrClosed is returned when sending on a closed Conn.
	ErrClosed = errors.New("transport: connection closed")
)

// Conn is an established link to a collector.
type Conn interface {
	// Send transmits the whole payload or fails.
	Send(ctx context.Context, payload []byte) error
	// LocalAddr describes the local end of the link.
	LocalAddr() string
	Close() error
}

// Dialer opens Conns.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialFunc is func form of Dialer.
type DialFunc func(ctx context.Context) (Conn, error)

// Dial implements Dialer.
func (f DialFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// NewDialer creates a Dialer from a URL:
//
//	tcp://host:port
//	mqtt://[user:pass@]host:port/prefix/?topic=tags&qos=1&client-id=id
//	redis://[user:pass@]host:port/db?key=tags&mode=list|pubsub
//	ws://host:port/path
func NewDialer(rawURL string) (Dialer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(u.Scheme) {
	case "tcp", "tcp4", "tcp6":
		return NewTCPDialer(u)
	case "mqtt", "mqtts", "ssl":
		return NewMQTTDialer(rawURL)
	case "redis", "rediss":
		return NewRedisDialer(rawURL)
	case "ws", "wss":
		return NewWSDialer(rawURL)
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)
}
