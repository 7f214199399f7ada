// Package netlog ships the device's log lines to a remote collector.
//
// Log lines are formatted into a bounded Buffer without ever blocking the
// caller. The Shipper drains the Buffer over a reconnecting link. When the
// Buffer is full, new bytes are dropped and the bytes already buffered are
// kept in order.
package netlog

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the capacity of the log buffer.
const DefaultBufferSize = 1024

// Buffer is a bounded byte ring with one writer side that never blocks and
// one reader side that waits for data.
type Buffer struct {
	lock  sync.Mutex
	data  []byte
	head  int
	count int

	notify  chan struct{}
	dropped atomic.Uint64
}

// NewBuffer creates a Buffer holding up to size bytes.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Buffer{data: make([]byte, size), notify: make(chan struct{}, 1)}
}

// Cap returns the capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.count
}

// Dropped returns the total number of bytes dropped.
func (b *Buffer) Dropped() uint64 {
	return b.dropped.Load()
}

// TryWrite appends as much of p as fits and drops the rest.
// It returns the number of bytes accepted.
func (b *Buffer) TryWrite(p []byte) int {
	b.lock.Lock()
	n := len(b.data) - b.count
	if n > len(p) {
		n = len(p)
	}
	tail := (b.head + b.count) % len(b.data)
	copied := copy(b.data[tail:], p[:n])
	copy(b.data, p[copied:n])
	b.count += n
	b.lock.Unlock()

	if dropped := len(p) - n; dropped > 0 {
		b.dropped.Add(uint64(dropped))
	}
	if n > 0 {
		select {
		case b.notify <- struct{}{}:
		default:
		}
	}
	return n
}

// Write implements io.Writer. Overflow is dropped, not reported.
func (b *Buffer) Write(p []byte) (int, error) {
	b.TryWrite(p)
	return len(p), nil
}

// TryRead takes the contiguous run of buffered bytes at the head,
// up to len(p). It returns 0 when the buffer is empty.
func (b *Buffer) TryRead(p []byte) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	run := b.count
	if end := len(b.data) - b.head; run > end {
		run = end
	}
	n := copy(p, b.data[b.head:b.head+run])
	b.head = (b.head + n) % len(b.data)
	b.count -= n
	return n
}

// Wait blocks until the buffer holds at least one byte.
func (b *Buffer) Wait(ctx context.Context) error {
	for {
		if b.Len() > 0 {
			return nil
		}
		select {
		case <-b.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Read blocks until data is available and then behaves like TryRead.
func (b *Buffer) Read(ctx context.Context, p []byte) (int, error) {
	for {
		if err := b.Wait(ctx); err != nil {
			return 0, err
		}
		if n := b.TryRead(p); n > 0 || len(p) == 0 {
			return n, nil
		}
	}
}
