// Package latest provides a one-value mailbox where the newest value wins.
//
// A Slot holds at most one value. Publish never blocks and replaces any value
// not yet taken. A Slot supports any number of publishers but only a single
// consumer: concurrent Wait calls may both wake for the same value and only
// one of them will get it.
package latest

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned by WaitTimeout when no value arrives in time.
var ErrTimeout = errors.New("latest: wait timeout")

// Slot is a single-value, overwrite-on-publish mailbox.
type Slot[T any] struct {
	lock    sync.Mutex
	value   T
	present bool
	notify  chan struct{}
}

// New creates an empty Slot.
func New[T any]() *Slot[T] {
	return &Slot[T]{notify: make(chan struct{}, 1)}
}

// Publish stores v, replacing any value not yet taken.
func (s *Slot[T]) Publish(v T) {
	s.lock.Lock()
	s.value, s.present = v, true
	s.lock.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// TryTake takes the value if one is present.
func (s *Slot[T]) TryTake() (v T, ok bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.present {
		return v, false
	}
	v, s.value, s.present = s.value, *new(T), false
	return v, true
}

// Wait blocks until a value is present, then takes it.
func (s *Slot[T]) Wait(ctx context.Context) (T, error) {
	return s.wait(ctx, nil)
}

// WaitTimeout is Wait bounded by d.
func (s *Slot[T]) WaitTimeout(ctx context.Context, d time.Duration) (T, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	return s.wait(ctx, timer.C)
}

func (s *Slot[T]) wait(ctx context.Context, timeout <-chan time.Time) (T, error) {
	for {
		if v, ok := s.TryTake(); ok {
			return v, nil
		}
		select {
		case <-s.notify:
		case <-timeout:
			var zero T
			return zero, ErrTimeout
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}
