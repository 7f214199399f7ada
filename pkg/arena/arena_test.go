package arena

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateAligns(t *testing.T) {
	a := New(64)
	b1, err := a.Allocate(3, 1)
	require.NoError(t, err)
	require.Equal(t, 0, b1.Offset)
	require.Equal(t, 3, b1.Len())

	b2, err := a.Allocate(8, 8)
	require.NoError(t, err)
	require.Equal(t, 8, b2.Offset)
	require.Equal(t, 16, a.Stats().Cursor)
	require.Equal(t, 2, a.Stats().Live)
}

func TestAllocateOutOfMemory(t *testing.T) {
	cases := []struct {
		name   string
		cursor int
		size   int
		align  int
	}{
		{"exceeds", 0, 65, 1},
		{"after cursor", 60, 5, 1},
		{"aligned past end", 57, 1, 8},
		{"align larger than region", 0, 1, 128},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := New(64)
			if c.cursor > 0 {
				_, err := a.Allocate(c.cursor, 1)
				require.NoError(t, err)
			}
			before := a.Stats()
			_, err := a.Allocate(c.size, c.align)
			require.ErrorIs(t, err, ErrOutOfMemory)
			require.Equal(t, before, a.Stats())
		})
	}
}

func TestAllocateZeroSize(t *testing.T) {
	a := New(16)
	_, err := a.Allocate(5, 1)
	require.NoError(t, err)
	b, err := a.Allocate(0, 4)
	require.NoError(t, err)
	require.Equal(t, 8, b.Offset)
	require.Equal(t, 0, b.Len())
	require.Equal(t, 8, a.Stats().Cursor)

	_, err = a.Allocate(-1, 1)
	require.ErrorIs(t, err, ErrInvalidSize)

	_, err = a.Allocate(5, 1)
	require.NoError(t, err)
	end, err := a.Allocate(0, 8)
	require.NoError(t, err)
	require.Equal(t, 16, end.Offset)
	require.Equal(t, 0, end.Len())
	require.Equal(t, Stats{Capacity: 16, Cursor: 16, Live: 4}, a.Stats())
}

func TestReleaseResetsAtZero(t *testing.T) {
	a := New(64)
	b1, err := a.Allocate(10, 1)
	require.NoError(t, err)
	b2, err := a.Allocate(10, 1)
	require.NoError(t, err)

	a.Release(b1)
	require.Equal(t, Stats{Capacity: 64, Cursor: 20, Live: 1}, a.Stats())
	a.Release(b2)
	require.Equal(t, Stats{Capacity: 64, Cursor: 0, Live: 0}, a.Stats())

	b3, err := a.Allocate(4, 1)
	require.NoError(t, err)
	require.Equal(t, 0, b3.Offset)

	a.Release(b3)
	a.Release(b3)
	require.Equal(t, 0, a.Stats().Live)
}

func TestBlocksStayInsideRegion(t *testing.T) {
	a := New(16)
	b, err := a.Allocate(4, 1)
	require.NoError(t, err)
	require.Equal(t, 4, cap(b.Data))
	b.Data = append(b.Data, 0xff)
	next, err := a.Allocate(1, 1)
	require.NoError(t, err)
	require.Equal(t, byte(0), next.Data[0])
}

func TestRandomSequencesAreDisjoint(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	a := New(4096)
	var live []Block
	for i := 0; i < 5000; i++ {
		if len(live) > 0 && rnd.Intn(3) == 0 {
			n := rnd.Intn(len(live))
			a.Release(live[n])
			live = append(live[:n], live[n+1:]...)
			continue
		}
		align := 1 << uint(rnd.Intn(5))
		b, err := a.Allocate(rnd.Intn(64), align)
		if err != nil {
			require.ErrorIs(t, err, ErrOutOfMemory)
			continue
		}
		require.Zero(t, b.Offset%align)
		require.LessOrEqual(t, b.Offset+b.Len(), 4096)
		for _, other := range live {
			disjoint := b.Offset+b.Len() <= other.Offset || other.Offset+other.Len() <= b.Offset
			require.True(t, disjoint || b.Len() == 0 || other.Len() == 0,
				"block %d+%d overlaps %d+%d", b.Offset, b.Len(), other.Offset, other.Len())
		}
		live = append(live, b)
		stats := a.Stats()
		require.Equal(t, len(live), stats.Live)
		require.True(t, stats.Cursor >= 0 && stats.Cursor <= stats.Capacity)
	}
}

func TestConcurrentAllocateRelease(t *testing.T) {
	a := New(DefaultSize)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				b, err := a.Allocate(30, 1)
				if err == nil {
					a.Release(b)
				}
			}
		}()
	}
	wg.Wait()
	require.Equal(t, Stats{Capacity: DefaultSize}, a.Stats())
}
