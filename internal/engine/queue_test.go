package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sushid/internal/control"
)

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestCommandQueue_CapacityRoundsUp(t *testing.T) {
	q := newCommandQueue(5)
	assert.Len(t, q.slots, 8)
	assert.Equal(t, 8, q.free.Len())
}

func TestCommandQueue_FIFO(t *testing.T) {
	q := newCommandQueue(8)
	for i := 1; i <= 3; i++ {
		_, ok := q.submit(Command{Op: OpSetTempo, Float: float64(i)})
		require.True(t, ok)
	}
	for i := 1; i <= 3; i++ {
		s, idx, ok := q.next()
		require.True(t, ok)
		assert.Equal(t, float64(i), s.cmd.Float)
		q.complete(s, idx)
	}
	_, _, ok := q.next()
	assert.False(t, ok, "queue should be empty")
}

func TestCommandQueue_AbandonedDuringApply(t *testing.T) {
	q := newCommandQueue(2)
	idx, ok := q.submit(Command{Op: OpGetTempo})
	require.True(t, ok)
	h := Handle{q: q, idx: idx, op: OpGetTempo}

	s, sidx, ok := q.next()
	require.True(t, ok)
	assert.Equal(t, slotApplying, s.state.Load())

	_, err := h.Wait(cancelledContext())
	assert.True(t, control.IsUnavailable(err))
	assert.Equal(t, slotAbandoned, s.state.Load())

	// The audio goroutine reclaims the slot when it finishes applying.
	q.complete(s, sidx)
	assert.Equal(t, slotFree, s.state.Load())
	assert.Equal(t, 2, q.free.Len())
	assert.Empty(t, s.done, "no completion signal for an abandoned slot")
}

func TestCommandQueue_CompletedBeforeWaiterGivesUp(t *testing.T) {
	q := newCommandQueue(2)
	idx, ok := q.submit(Command{Op: OpGetTempo})
	require.True(t, ok)
	h := Handle{q: q, idx: idx, op: OpGetTempo}

	s, sidx, ok := q.next()
	require.True(t, ok)
	s.res.Float = 99
	q.complete(s, sidx)

	// Both the completion and the cancellation are ready; either outcome
	// must leave the slot released exactly once.
	_, _ = h.Wait(cancelledContext())
	assert.Equal(t, slotFree, s.state.Load())
	assert.Equal(t, 2, q.free.Len())
	assert.Empty(t, s.done)
}

func TestCommandQueue_CancelledIsSkipped(t *testing.T) {
	q := newCommandQueue(4)
	first, _ := q.submit(Command{Op: OpSetTempo, Float: 1})
	_, _ = q.submit(Command{Op: OpSetTempo, Float: 2})

	_, err := Handle{q: q, idx: first}.Wait(cancelledContext())
	require.Error(t, err)

	s, idx, ok := q.next()
	require.True(t, ok)
	assert.Equal(t, 2.0, s.cmd.Float)
	q.complete(s, idx)
	assert.Equal(t, 3, q.free.Len(), "the cancelled slot was reclaimed")
}

func TestCommandQueue_ConcurrentSubmitters(t *testing.T) {
	q := newCommandQueue(64)
	const producers = 4
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for {
					idx, ok := q.submit(Command{Op: OpGetTempo})
					if ok {
						_, err := Handle{q: q, idx: idx}.Wait(context.Background())
						assert.NoError(t, err)
						break
					}
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	applied := 0
	for {
		select {
		case <-done:
			assert.Equal(t, producers*perProducer, applied)
			assert.Equal(t, 64, q.free.Len())
			return
		default:
		}
		if s, idx, ok := q.next(); ok {
			q.complete(s, idx)
			applied++
		}
	}
}
