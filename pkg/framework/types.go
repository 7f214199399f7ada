package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
// Every long-running task of the device (reader, delivery, log shipping,
// responder) is a Runnable.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Clock provides the timers used at suspension points.
type Clock interface {
	After(time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// SystemClock is the Clock backed by package time.
var SystemClock Clock = systemClock{}

// ClockOrDefault returns c, or SystemClock when c is nil.
func ClockOrDefault(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}

// Sleep suspends for d on the clock, or until ctx is done.
func Sleep(ctx context.Context, clock Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ClockOrDefault(clock).After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
