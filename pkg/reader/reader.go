// Package reader captures tag frames from the serial line and publishes the
// latest decoded record.
package reader

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/robotalks/tagrelay/pkg/arena"
	fx "github.com/robotalks/tagrelay/pkg/framework"
	"github.com/robotalks/tagrelay/pkg/latest"
	"github.com/robotalks/tagrelay/pkg/logging"
	"github.com/robotalks/tagrelay/pkg/metrics"
	"github.com/robotalks/tagrelay/pkg/tag"
)

// DefaultPace is the pause after each published frame.
const DefaultPace = time.Second

// Loop reads frames from Source until it fails.
type Loop struct {
	Source  io.Reader
	Arena   *arena.Arena
	Slot    *latest.Slot[tag.Record]
	Pace    time.Duration
	Clock   fx.Clock
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Name implements framework.Named.
func (l *Loop) Name() string {
	return "reader"
}

// Run implements framework.Runnable.
// A read failure ends the loop. When Source is an io.Closer, it is closed when
// the loop ends, and on cancellation to unblock a pending read.
func (l *Loop) Run(ctx context.Context) error {
	logger := logging.OrGlog(l.Logger)
	logger.Infof("reading")
	run := func() error { return l.run(ctx, logger) }
	if closer, ok := l.Source.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, run)
	}
	return run()
}

func (l *Loop) run(ctx context.Context, logger logging.Logger) error {
	pace := l.Pace
	if pace <= 0 {
		pace = DefaultPace
	}
	var buf []byte
	if l.Arena != nil {
		block, err := l.Arena.Allocate(tag.FrameSize, 1)
		if err != nil {
			return err
		}
		defer l.Arena.Release(block)
		buf = block.Data
	} else {
		buf = make([]byte, tag.FrameSize)
	}
	for {
		rec, err := l.ReadFrame(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.Metrics.ReadFailed()
			return err
		}
		l.Metrics.FrameRead()
		logger.Infof("Got card ID: %s", rec.ID())
		l.Slot.Publish(rec)
		if err := fx.Sleep(ctx, l.Clock, pace); err != nil {
			return err
		}
	}
}

// ReadFrame reads and decodes exactly one frame into buf, which must hold
// tag.FrameSize bytes.
func (l *Loop) ReadFrame(buf []byte) (tag.Record, error) {
	if _, err := io.ReadFull(l.Source, buf[:tag.FrameSize]); err != nil {
		return tag.Record{}, fmt.Errorf("read frame: %w", err)
	}
	return tag.DecodeBytes(buf)
}
