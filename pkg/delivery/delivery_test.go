package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/tagrelay/pkg/latest"
	"github.com/robotalks/tagrelay/pkg/link"
	"github.com/robotalks/tagrelay/pkg/logging"
	"github.com/robotalks/tagrelay/pkg/tag"
	"github.com/robotalks/tagrelay/pkg/transport"
)

type testClock struct {
	lock   sync.Mutex
	sleeps []time.Duration
}

func (c *testClock) After(d time.Duration) <-chan time.Time {
	c.lock.Lock()
	c.sleeps = append(c.sleeps, d)
	c.lock.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (c *testClock) count() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.sleeps)
}

type sent struct {
	conn    int
	payload string
	err     error
}

// testLink scripts dial and send results in order.
type testLink struct {
	dialErrs []error
	sendErrs []error
	sentCh   chan sent

	lock  sync.Mutex
	dials int
	sends int
}

func (l *testLink) Dial(context.Context) (transport.Conn, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	n := l.dials
	l.dials++
	if n < len(l.dialErrs) && l.dialErrs[n] != nil {
		return nil, l.dialErrs[n]
	}
	return &testConn{link: l, id: n}, nil
}

type testConn struct {
	link   *testLink
	id     int
	closed bool
}

func (c *testConn) Send(_ context.Context, payload []byte) error {
	l := c.link
	l.lock.Lock()
	n := l.sends
	l.sends++
	var err error
	if n < len(l.sendErrs) {
		err = l.sendErrs[n]
	}
	l.lock.Unlock()
	l.sentCh <- sent{conn: c.id, payload: string(payload), err: err}
	return err
}

func (c *testConn) LocalAddr() string { return "test" }

func (c *testConn) Close() error {
	c.closed = true
	return nil
}

func startLoop(t *testing.T, l *Loop) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

func nextSent(t *testing.T, ch <-chan sent) sent {
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("nothing sent")
	}
	return sent{}
}

func TestConnectFailsOnceThenDelivers(t *testing.T) {
	tl := &testLink{
		dialErrs: []error{errors.New("connection refused")},
		sentCh:   make(chan sent, 4),
	}
	clock := &testClock{}
	slot := latest.New[tag.Record]()
	l := &Loop{Slot: slot, Dialer: tl, Clock: clock, Logger: logging.Glog()}
	slot.Publish(tag.NewRecord(0x4321, 0x9876543210))
	cancel, errCh := startLoop(t, l)

	s := nextSent(t, tl.sentCh)
	require.Equal(t, "17185-654820258320", s.payload)
	require.Equal(t, 1, s.conn)
	require.NoError(t, s.err)
	require.Equal(t, 1, clock.count())

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	require.Len(t, tl.sentCh, 0)
}

func TestSendFailureRetriedOnNextConnection(t *testing.T) {
	tl := &testLink{
		sendErrs: []error{errors.New("broken pipe")},
		sentCh:   make(chan sent, 4),
	}
	clock := &testClock{}
	slot := latest.New[tag.Record]()
	var states []link.State
	var statesLock sync.Mutex
	l := &Loop{
		Slot:    slot,
		Dialer:  tl,
		Encoder: LineEncoder{Format: tag.IDHex},
		Clock:   clock,
		Logger:  logging.Glog(),
		Notifier: link.StateChangedFunc(func(_ context.Context, _ string, state link.State) {
			statesLock.Lock()
			states = append(states, state)
			statesLock.Unlock()
		}),
	}
	slot.Publish(tag.NewRecord(1, 0xABC))
	cancel, errCh := startLoop(t, l)

	first := nextSent(t, tl.sentCh)
	require.Error(t, first.err)
	second := nextSent(t, tl.sentCh)
	require.NoError(t, second.err)
	require.Equal(t, first.payload, second.payload)
	require.Equal(t, "0000000ABC\r\n", second.payload)
	require.NotEqual(t, first.conn, second.conn)
	require.Equal(t, 0, clock.count())

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	statesLock.Lock()
	defer statesLock.Unlock()
	require.Equal(t, []link.State{
		link.Connecting, link.Connected, link.Sending, link.Disconnected,
		link.Connecting, link.Connected, link.Sending, link.Connected,
		link.Disconnected,
	}, states)
}

func TestRetainedEventID(t *testing.T) {
	tl := &testLink{
		sendErrs: []error{errors.New("reset")},
		sentCh:   make(chan sent, 4),
	}
	slot := latest.New[tag.Record]()
	l := &Loop{Slot: slot, Dialer: tl, Encoder: ProtoEncoder{}, DeviceID: "dev", Clock: &testClock{}}
	slot.Publish(tag.NewRecord(1, 2))
	startLoop(t, l)

	first := nextSent(t, tl.sentCh)
	second := nextSent(t, tl.sentCh)
	ev1, err := tag.UnmarshalEvent([]byte(first.payload))
	require.NoError(t, err)
	ev2, err := tag.UnmarshalEvent([]byte(second.payload))
	require.NoError(t, err)
	require.Equal(t, ev1.ID, ev2.ID)
	require.Equal(t, "dev", ev2.DeviceID)
	require.Equal(t, "1-000000000002", ev2.Identity)
}

func TestLatestWinsWhileDisconnected(t *testing.T) {
	tl := &testLink{sentCh: make(chan sent, 4)}
	slot := latest.New[tag.Record]()
	slot.Publish(tag.NewRecord(1, 1))
	slot.Publish(tag.NewRecord(1, 2))
	l := &Loop{Slot: slot, Dialer: tl, Clock: &testClock{}}
	startLoop(t, l)

	s := nextSent(t, tl.sentCh)
	require.Equal(t, "1-000000000002", s.payload)
	select {
	case s := <-tl.sentCh:
		t.Fatalf("unexpected send %q", s.payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewEncoder(t *testing.T) {
	for _, name := range []string{"", "identity", "line", "proto"} {
		_, err := NewEncoder(name, tag.IDDecimal)
		require.NoError(t, err)
	}
	_, err := NewEncoder("json", tag.IDDecimal)
	require.Error(t, err)
}
