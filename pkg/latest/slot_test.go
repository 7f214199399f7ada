package latest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishCoalesces(t *testing.T) {
	s := New[string]()
	s.Publish("first")
	s.Publish("second")

	v, err := s.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "second", v)

	_, err = s.WaitTimeout(context.Background(), 10*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestWaitWakesOnPublish(t *testing.T) {
	s := New[int]()
	got := make(chan int, 1)
	go func() {
		v, err := s.Wait(context.Background())
		if err == nil {
			got <- v
		}
	}()
	time.Sleep(10 * time.Millisecond)
	s.Publish(7)
	select {
	case v := <-got:
		require.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("wait not woken")
	}
}

func TestWaitCanceled(t *testing.T) {
	s := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)

	s.Publish(1)
	v, err := s.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestTryTake(t *testing.T) {
	s := New[int]()
	_, ok := s.TryTake()
	require.False(t, ok)
	s.Publish(3)
	v, ok := s.TryTake()
	require.True(t, ok)
	require.Equal(t, 3, v)
	_, ok = s.TryTake()
	require.False(t, ok)
}
