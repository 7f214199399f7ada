package netlog

import (
	"context"
	"time"

	"github.com/robotalks/tagrelay/pkg/arena"
	fx "github.com/robotalks/tagrelay/pkg/framework"
	"github.com/robotalks/tagrelay/pkg/link"
	"github.com/robotalks/tagrelay/pkg/logging"
	"github.com/robotalks/tagrelay/pkg/metrics"
	"github.com/robotalks/tagrelay/pkg/transport"
)

// DefaultMaxChunk is the largest chunk sent at once.
const DefaultMaxChunk = 1024

// Shipper forwards the Buffer to a collector.
type Shipper struct {
	Buffer   *Buffer
	Dialer   transport.Dialer
	Arena    *arena.Arena
	MaxChunk int
	Backoff  time.Duration
	Clock    fx.Clock
	Notifier link.StateNotifier
	Logger   logging.Logger
	Metrics  *metrics.Metrics
}

// Name implements framework.Named.
func (s *Shipper) Name() string {
	return "logship"
}

// Run implements framework.Runnable. The chunk buffer is taken from Arena once
// and held until Run returns, which happens only when ctx is done or the
// buffer cannot be allocated.
func (s *Shipper) Run(ctx context.Context) error {
	logger := logging.OrGlog(s.Logger)
	r := &link.Redialer{
		Name:     s.Name(),
		Dialer:   s.Dialer,
		Backoff:  s.Backoff,
		Clock:    s.Clock,
		Notifier: link.Notifiers{s.Notifier, s.Metrics},
	}
	size := s.MaxChunk
	if size <= 0 {
		size = DefaultMaxChunk
	}
	var chunk []byte
	if s.Arena != nil {
		block, err := s.Arena.Allocate(size, 1)
		if err != nil {
			return err
		}
		defer s.Arena.Release(block)
		chunk = block.Data
	} else {
		chunk = make([]byte, size)
	}
	for {
		conn, err := r.Connect(ctx)
		if err != nil {
			return err
		}
		logger.Infof("Logger is up: %s", conn.LocalAddr())
		if err := s.forward(ctx, r, conn, chunk); err != nil {
			r.Drop(ctx, conn)
			return err
		}
		if err := r.Pause(ctx); err != nil {
			return err
		}
	}
}

// forward sends chunks until a send fails. The failed chunk is dropped.
func (s *Shipper) forward(ctx context.Context, r *link.Redialer, conn transport.Conn, chunk []byte) error {
	logger := logging.OrGlog(s.Logger)
	for {
		if err := s.Buffer.Wait(ctx); err != nil {
			return err
		}
		n, err := s.send(ctx, r, conn, chunk)
		s.Metrics.LogShipped(n, err)
		if err == nil {
			r.SetState(ctx, link.Connected)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.Drop(ctx, conn)
		logger.Warningf("log shipping failed: %v", err)
		return nil
	}
}

func (s *Shipper) send(ctx context.Context, r *link.Redialer, conn transport.Conn, chunk []byte) (int, error) {
	n := s.Buffer.TryRead(chunk)
	if n == 0 {
		return 0, nil
	}
	r.SetState(ctx, link.Forwarding)
	return n, conn.Send(ctx, chunk[:n])
}
