// Package ring provides a bounded, lock-free, multi-producer
// multi-consumer queue with preallocated cells.
//
// Push and Pop never block and never allocate, which makes the queue safe
// to use from the audio goroutine. A full queue rejects the push; an empty
// queue reports no value.
//
// The algorithm is the classic bounded MPMC queue with a sequence number
// per cell: a producer may write cell i only when its sequence equals the
// producer's position, and a consumer may read it only when the sequence is
// one past the position.
package ring

import (
	"sync/atomic"
)

type cell[T any] struct {
	seq atomic.Uint64
	val T
}

// Ring is a bounded FIFO. The zero value is not usable; call New.
type Ring[T any] struct {
	_     [64]byte // keep head and tail on separate cache lines
	head  atomic.Uint64
	_     [56]byte
	tail  atomic.Uint64
	_     [56]byte
	mask  uint64
	cells []cell[T]
}

// New creates a ring holding at least capacity values. The capacity is
// rounded up to a power of two (minimum 2).
func New[T any](capacity int) *Ring[T] {
	n := RoundUp(capacity)
	r := &Ring[T]{
		mask:  uint64(n - 1),
		cells: make([]cell[T], n),
	}
	for i := range r.cells {
		r.cells[i].seq.Store(uint64(i))
	}
	return r
}

// RoundUp returns the smallest power of two >= n, and at least 2.
func RoundUp(n int) int {
	size := 2
	for size < n {
		size <<= 1
	}
	return size
}

// Cap returns the number of values the ring can hold.
func (r *Ring[T]) Cap() int {
	return len(r.cells)
}

// Len returns an approximate count of queued values. It is exact only when
// no push or pop is in progress.
func (r *Ring[T]) Len() int {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Push appends v. It returns false without side effects if the ring is full.
func (r *Ring[T]) Push(v T) bool {
	pos := r.tail.Load()
	for {
		c := &r.cells[pos&r.mask]
		seq := c.seq.Load()
		switch dif := int64(seq) - int64(pos); {
		case dif == 0:
			if r.tail.CompareAndSwap(pos, pos+1) {
				c.val = v
				c.seq.Store(pos + 1)
				return true
			}
			pos = r.tail.Load()
		case dif < 0:
			return false
		default:
			pos = r.tail.Load()
		}
	}
}

// Pop removes the oldest value. ok is false if the ring is empty.
func (r *Ring[T]) Pop() (v T, ok bool) {
	pos := r.head.Load()
	for {
		c := &r.cells[pos&r.mask]
		seq := c.seq.Load()
		switch dif := int64(seq) - int64(pos+1); {
		case dif == 0:
			if r.head.CompareAndSwap(pos, pos+1) {
				v = c.val
				var zero T
				c.val = zero
				c.seq.Store(pos + r.mask + 1)
				return v, true
			}
			pos = r.head.Load()
		case dif < 0:
			return v, false
		default:
			pos = r.head.Load()
		}
	}
}
