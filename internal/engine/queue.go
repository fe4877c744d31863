package engine

import (
	"context"
	"sync/atomic"

	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/ring"
)

// DefaultCapacity is the default number of command slots.
const DefaultCapacity = 256

// Slot lifecycle. A slot is owned by its submitter from Submit until
// release, except while Applying, when the audio goroutine owns it.
//
//	Free -> Queued -> Applying -> Done -> Free        normal completion
//	Queued -> Cancelled -> Free                       waiter gave up before drain
//	Applying -> Abandoned -> Free                     waiter gave up during apply
const (
	slotFree uint32 = iota
	slotQueued
	slotApplying
	slotDone
	slotCancelled
	slotAbandoned
)

type slot struct {
	state atomic.Uint32
	cmd   Command
	res   Result
	fail  string // non-empty if the command could not be applied
	done  chan struct{}
}

// commandQueue is a bounded multi-producer queue of preallocated command
// slots. Slot indices circulate between the free ring and the pending
// ring, so neither submit nor drain allocates.
//
// FIFO: indices are popped from pending in the order their Push
// succeeded. A connection that submits sequentially therefore has its
// commands applied in submission order.
type commandQueue struct {
	slots   []slot
	free    *ring.Ring[int32]
	pending *ring.Ring[int32]
}

// newCommandQueue creates a queue with capacity rounded up to a power of
// two.
func newCommandQueue(capacity int) *commandQueue {
	n := ring.RoundUp(capacity)
	q := &commandQueue{
		slots:   make([]slot, n),
		free:    ring.New[int32](n),
		pending: ring.New[int32](n),
	}
	for i := range q.slots {
		q.slots[i].done = make(chan struct{}, 1)
		q.free.Push(int32(i))
	}
	return q
}

// submit claims a slot for cmd and queues it. It returns false if no slot
// is free.
func (q *commandQueue) submit(cmd Command) (int32, bool) {
	idx, ok := q.free.Pop()
	if !ok {
		return -1, false
	}
	s := &q.slots[idx]
	s.cmd = cmd
	s.res = Result{}
	s.fail = ""
	s.state.Store(slotQueued)
	// Cannot fail: at most len(slots) indices are in flight.
	q.pending.Push(idx)
	return idx, true
}

// next pops the oldest pending slot and moves it to Applying. Slots whose
// waiter already cancelled are reclaimed and skipped. Audio goroutine
// only.
func (q *commandQueue) next() (*slot, int32, bool) {
	for {
		idx, ok := q.pending.Pop()
		if !ok {
			return nil, -1, false
		}
		s := &q.slots[idx]
		if s.state.CompareAndSwap(slotQueued, slotApplying) {
			return s, idx, true
		}
		q.release(idx)
	}
}

// complete publishes the outcome of an applied slot. Audio goroutine only.
func (q *commandQueue) complete(s *slot, idx int32) {
	if !s.state.CompareAndSwap(slotApplying, slotDone) {
		// Abandoned by its waiter.
		q.release(idx)
		return
	}
	select {
	case s.done <- struct{}{}:
	default:
	}
}

func (q *commandQueue) release(idx int32) {
	s := &q.slots[idx]
	s.cmd = Command{}
	s.state.Store(slotFree)
	q.free.Push(idx)
}

// Len returns the number of queued commands.
func (q *commandQueue) Len() int {
	return q.pending.Len()
}

// Handle tracks one submitted command.
type Handle struct {
	q   *commandQueue
	idx int32
	op  Op
}

// Op returns the submitted command's op.
func (h Handle) Op() Op { return h.op }

// Wait blocks until the audio goroutine has applied the command or ctx is
// done. A Handle must be waited on exactly once.
//
// When ctx ends first the command is withdrawn if it has not been drained
// yet; otherwise it is still applied and its result is discarded. Either
// way Wait returns an Unavailable error.
func (h Handle) Wait(ctx context.Context) (Result, error) {
	s := &h.q.slots[h.idx]
	select {
	case <-s.done:
		return h.finish(s)
	case <-ctx.Done():
	}

	if s.state.CompareAndSwap(slotQueued, slotCancelled) {
		// The audio goroutine reclaims it when popped.
		return Result{}, waitError(ctx)
	}
	if s.state.CompareAndSwap(slotApplying, slotAbandoned) {
		return Result{}, waitError(ctx)
	}
	// Done: the completion signal is sent right after the state change.
	<-s.done
	h.q.release(h.idx)
	return Result{}, waitError(ctx)
}

func (h Handle) finish(s *slot) (Result, error) {
	res, fail := s.res, s.fail
	h.q.release(h.idx)
	if fail != "" {
		return Result{}, control.Internal("audio engine rejected command", &ApplyError{Op: h.op, Message: fail})
	}
	return res, nil
}
