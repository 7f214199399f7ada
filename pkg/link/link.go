// Package link holds the reconnect-with-fixed-backoff shape shared by the
// delivery and log shipping loops.
package link

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/tagrelay/pkg/framework"
	"github.com/robotalks/tagrelay/pkg/transport"
)

// DefaultBackoff is the pause before a retried connect.
const DefaultBackoff = time.Second

// State is the state of a link.
type State int

// Link states.
const (
	Disconnected State = iota
	Connecting
	Connected
	// Sending is the delivery loop transmitting a record.
	Sending
	// Forwarding is the log shipper transmitting a chunk.
	Forwarding
)

var stateNames = [...]string{"disconnected", "connecting", "connected", "sending", "forwarding"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StateNotifier is called when the state of a named link changes.
type StateNotifier interface {
	StateChanged(ctx context.Context, name string, state State)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(ctx context.Context, name string, state State)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(ctx context.Context, name string, state State) {
	f(ctx, name, state)
}

// Notifiers fans a state change out to several notifiers.
type Notifiers []StateNotifier

// StateChanged implements StateNotifier.
func (n Notifiers) StateChanged(ctx context.Context, name string, state State) {
	for _, notifier := range n {
		if notifier != nil {
			notifier.StateChanged(ctx, name, state)
		}
	}
}

// Redialer connects through a Dialer, retrying forever with a fixed pause.
type Redialer struct {
	Name     string
	Dialer   transport.Dialer
	Backoff  time.Duration
	Clock    fx.Clock
	Notifier StateNotifier

	state State
}

// State returns the last reported state.
func (r *Redialer) State() State {
	return r.state
}

// SetState records and reports a state change.
func (r *Redialer) SetState(ctx context.Context, state State) {
	if state == r.state {
		return
	}
	r.state = state
	glog.V(3).Infof("%s: %s", r.Name, state)
	if r.Notifier != nil {
		r.Notifier.StateChanged(ctx, r.Name, state)
	}
}

// Connect dials until a connection is established or ctx is done.
// A failed attempt is followed by Backoff before the next one.
func (r *Redialer) Connect(ctx context.Context) (transport.Conn, error) {
	for {
		r.SetState(ctx, Connecting)
		glog.V(2).Infof("%s: connecting", r.Name)
		conn, err := r.Dialer.Dial(ctx)
		if err == nil {
			r.SetState(ctx, Connected)
			return conn, nil
		}
		r.SetState(ctx, Disconnected)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		glog.V(1).Infof("%s: connect failed: %v", r.Name, err)
		if err := r.Pause(ctx); err != nil {
			return nil, err
		}
	}
}

// Pause sleeps the backoff interval.
func (r *Redialer) Pause(ctx context.Context) error {
	backoff := r.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return fx.Sleep(ctx, r.Clock, backoff)
}

// Drop closes conn and reports the link as disconnected.
func (r *Redialer) Drop(ctx context.Context, conn transport.Conn) {
	if conn != nil {
		conn.Close()
	}
	r.SetState(ctx, Disconnected)
}
