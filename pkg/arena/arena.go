// Package arena provides the fixed-size bump allocator that serves the
// device's dynamic buffers.
//
// An Arena is a single pre-sized region with a cursor that only moves
// forward. Individual releases do not reclaim memory: the region is
// reclaimed as a whole when the last outstanding block is released, at
// which point the cursor returns to the base of the region. Workloads whose
// allocation lifetimes overlap never reach zero outstanding blocks and will
// eventually exhaust the region. There is no compaction and no free list.
//
// All operations hold a single mutex for their whole duration and never
// wait on anything else, so an Arena is safe for concurrent use.
package arena

import (
	"errors"
	"sync"
)

// DefaultSize is the region size used by the device.
const DefaultSize = 64 * 1024

var (
	// ErrOutOfMemory indicates the request does not fit the region.
	ErrOutOfMemory = errors.New("arena: out of memory")
	// ErrInvalidSize indicates a negative size was requested.
	ErrInvalidSize = errors.New("arena: invalid size")
)

// Block is a granted allocation.
type Block struct {
	// Offset is the position of the block from the base of the region.
	Offset int
	// Data is the block memory, capped to the block size.
	Data []byte
}

// Len returns the size of the block.
func (b Block) Len() int {
	return len(b.Data)
}

// Stats is a snapshot of the arena state.
type Stats struct {
	Capacity int
	Cursor   int
	Live     int
}

// Arena is a bump allocator over a fixed region.
type Arena struct {
	lock   sync.Mutex
	region []byte
	cursor int
	live   int
}

// New creates an Arena with a region of size bytes.
func New(size int) *Arena {
	if size < 0 {
		size = 0
	}
	return &Arena{region: make([]byte, size)}
}

// Allocate grants size bytes at the next offset aligned to align.
// align <= 0 is treated as 1. A zero size is legal and returns a block
// at the aligned cursor. On failure the cursor is unchanged.
func (a *Arena) Allocate(size, align int) (Block, error) {
	if size < 0 {
		return Block{}, ErrInvalidSize
	}
	if align <= 0 {
		align = 1
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	limit := len(a.region)
	if align > limit {
		return Block{}, ErrOutOfMemory
	}
	start, ok := alignUp(a.cursor, align)
	if !ok || start > limit || size > limit-start {
		return Block{}, ErrOutOfMemory
	}
	end := start + size
	a.cursor = end
	a.live++
	return Block{Offset: start, Data: a.region[start:end:end]}, nil
}

// Release returns a block. When no blocks are outstanding the whole region
// is reclaimed. Releasing with nothing outstanding is ignored.
func (a *Arena) Release(b Block) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.live == 0 {
		return
	}
	if a.live--; a.live == 0 {
		a.cursor = 0
	}
}

// Stats returns a snapshot of capacity, cursor and live count.
func (a *Arena) Stats() Stats {
	a.lock.Lock()
	defer a.lock.Unlock()
	return Stats{Capacity: len(a.region), Cursor: a.cursor, Live: a.live}
}

func alignUp(offset, align int) (int, bool) {
	rem := offset % align
	if rem == 0 {
		return offset, true
	}
	aligned := offset - rem + align
	return aligned, aligned > offset
}
