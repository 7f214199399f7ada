// Package delivery sends the latest tag read to a remote collector.
//
// The loop moves through Disconnected, Connecting, Connected and Sending.
// A failed connect is retried after a fixed backoff. A failed send closes
// the connection and reconnects immediately while keeping the record, so a
// record is delivered at least once and may be sent twice across a failure.
// Reads published while a record is held overwrite each other in the slot and
// only the newest is sent next.
package delivery

import (
	"context"
	"time"

	fx "github.com/robotalks/tagrelay/pkg/framework"
	"github.com/robotalks/tagrelay/pkg/latest"
	"github.com/robotalks/tagrelay/pkg/link"
	"github.com/robotalks/tagrelay/pkg/logging"
	"github.com/robotalks/tagrelay/pkg/metrics"
	"github.com/robotalks/tagrelay/pkg/tag"
	"github.com/robotalks/tagrelay/pkg/transport"
)

// Loop delivers records from Slot through Dialer.
type Loop struct {
	Slot     *latest.Slot[tag.Record]
	Dialer   transport.Dialer
	Encoder  Encoder
	Format   tag.IDFormat
	DeviceID string
	Backoff  time.Duration
	Clock    fx.Clock
	Notifier link.StateNotifier
	Logger   logging.Logger
	Metrics  *metrics.Metrics
}

// Name implements framework.Named.
func (l *Loop) Name() string {
	return "delivery"
}

// Run implements framework.Runnable. It only returns when ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	logger := logging.OrGlog(l.Logger)
	encoder := l.Encoder
	if encoder == nil {
		encoder = IdentityEncoder{Format: l.Format}
	}
	r := &link.Redialer{
		Name:     l.Name(),
		Dialer:   l.Dialer,
		Backoff:  l.Backoff,
		Clock:    l.Clock,
		Notifier: link.Notifiers{l.Notifier, l.Metrics},
	}

	var held *Pending
	for {
		conn, err := r.Connect(ctx)
		if err != nil {
			return err
		}
		logger.Debugf("delivery connected: %s", conn.LocalAddr())
		if held, err = l.deliver(ctx, r, conn, encoder, held); err != nil {
			r.Drop(ctx, conn)
			return err
		}
	}
}

// deliver sends records on conn until a send fails. The record being sent
// when it fails is returned to be retried on the next connection.
func (l *Loop) deliver(ctx context.Context, r *link.Redialer, conn transport.Conn, encoder Encoder, held *Pending) (*Pending, error) {
	logger := logging.OrGlog(l.Logger)
	for {
		if held == nil {
			rec, err := l.Slot.Wait(ctx)
			if err != nil {
				return nil, err
			}
			held = &Pending{
				Record: rec,
				Event:  tag.NewEvent(l.DeviceID, rec, l.Format, time.Now()),
			}
		}
		payload, err := encoder.Encode(held)
		if err != nil {
			logger.Errorf("encode %s: %v", held.Record.ID(), err)
			held = nil
			continue
		}

		r.SetState(ctx, link.Sending)
		err = conn.Send(ctx, payload)
		l.Metrics.Delivered(err)
		if err != nil {
			if ctx.Err() != nil {
				return held, ctx.Err()
			}
			logger.Warningf("send %s failed: %v", held.Record.ID(), err)
			r.Drop(ctx, conn)
			return held, nil
		}
		logger.Debugf("sent %s", held.Record.ID())
		held = nil
		r.SetState(ctx, link.Connected)
	}
}
