package timing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sushid/internal/control"
)

const testPeriod = time.Millisecond

func newEnabledTimer(t *testing.T) *Timer {
	t.Helper()
	tm := New(testPeriod, 64)
	tm.SetEnabled(true)
	return tm
}

// logFor records a synthetic measurement of d for id.
func logFor(tm *Timer, id int, d time.Duration) {
	tm.Stop(id, time.Now().Add(-d))
}

func TestBlockPeriod(t *testing.T) {
	assert.Equal(t, time.Duration(1333333), BlockPeriod(64, 48000))
	assert.Equal(t, time.Millisecond, BlockPeriod(48, 48000))
}

func TestTimer_FirstBatchTakenDirectly(t *testing.T) {
	tm := newEnabledTimer(t)
	logFor(tm, 1, 200*time.Microsecond)
	logFor(tm, 1, 400*time.Microsecond)
	require.Equal(t, 2, tm.Update())

	got, ok := tm.Timings(1)
	require.True(t, ok)
	assert.InDelta(t, 0.3, got.Average, 0.05)
	assert.InDelta(t, 0.2, got.Min, 0.05)
	assert.InDelta(t, 0.4, got.Max, 0.05)
	assert.LessOrEqual(t, got.Min, got.Average)
	assert.GreaterOrEqual(t, got.Max, got.Average)
}

func TestTimer_MergeAveragesAndExtremes(t *testing.T) {
	tm := newEnabledTimer(t)
	logFor(tm, 2, 100*time.Microsecond)
	tm.Update()
	logFor(tm, 2, 900*time.Microsecond)
	tm.Update()

	got, ok := tm.Timings(2)
	require.True(t, ok)
	assert.InDelta(t, 0.5, got.Average, 0.05)
	assert.InDelta(t, 0.1, got.Min, 0.05)
	assert.InDelta(t, 0.9, got.Max, 0.05)
}

func TestTimer_ClearIsolatedToNode(t *testing.T) {
	tm := newEnabledTimer(t)
	logFor(tm, 1, 300*time.Microsecond)
	logFor(tm, 2, 300*time.Microsecond)
	tm.Update()

	assert.True(t, tm.Clear(2))
	assert.False(t, tm.Clear(467))

	cleared, ok := tm.Timings(2)
	require.True(t, ok)
	assert.Equal(t, control.CpuTimings{}, cleared)

	other, ok := tm.Timings(1)
	require.True(t, ok)
	assert.Greater(t, other.Average, 0.0)

	// A cleared record starts over from the next batch.
	logFor(tm, 2, 500*time.Microsecond)
	tm.Update()
	again, _ := tm.Timings(2)
	assert.InDelta(t, 0.5, again.Average, 0.05)
	assert.InDelta(t, 0.5, again.Min, 0.05)
}

func TestTimer_ClearAll(t *testing.T) {
	tm := newEnabledTimer(t)
	logFor(tm, control.EngineTimingID, 300*time.Microsecond)
	logFor(tm, 3, 300*time.Microsecond)
	tm.Update()

	tm.ClearAll()
	for _, id := range []int{control.EngineTimingID, 3} {
		got, ok := tm.Timings(id)
		require.True(t, ok)
		assert.Equal(t, control.CpuTimings{}, got)
	}
}

func TestTimer_ClearDiscardsBufferedPoints(t *testing.T) {
	tm := newEnabledTimer(t)
	logFor(tm, 1, 300*time.Microsecond)
	logFor(tm, 2, 300*time.Microsecond)
	tm.Update()

	// Measured before the reset but not yet merged.
	logFor(tm, 1, 800*time.Microsecond)
	logFor(tm, 2, 800*time.Microsecond)

	assert.True(t, tm.Clear(1))
	tm.ClearAll()
	assert.Zero(t, tm.Update())

	for _, id := range []int{1, 2} {
		got, ok := tm.Timings(id)
		require.True(t, ok)
		assert.Equal(t, control.CpuTimings{}, got)
	}
}

func TestTimer_Disabled(t *testing.T) {
	tm := New(testPeriod, 8)
	assert.False(t, tm.Enabled())
	assert.True(t, tm.Start().IsZero())

	tm.Stop(1, tm.Start())
	assert.Equal(t, 0, tm.Update())

	tm.SetEnabled(true)
	logFor(tm, 1, 100*time.Microsecond)
	tm.Update()
	_, ok := tm.Timings(1)
	assert.True(t, ok)

	tm.SetEnabled(false)
	_, ok = tm.Timings(1)
	assert.False(t, ok, "disabling discards records")
}

func TestTimer_DropsWhenFull(t *testing.T) {
	tm := New(testPeriod, 2)
	tm.SetEnabled(true)
	for i := 0; i < 5; i++ {
		logFor(tm, 1, time.Microsecond)
	}
	assert.Equal(t, uint64(3), tm.Dropped())
	assert.Equal(t, 2, tm.Update())
}

func TestTimer_Run(t *testing.T) {
	tm := newEnabledTimer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tm.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	logFor(tm, 7, 100*time.Microsecond)
	require.Eventually(t, func() bool {
		_, ok := tm.Timings(7)
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
