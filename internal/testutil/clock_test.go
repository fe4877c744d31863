package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepClock_Advances(t *testing.T) {
	c := NewStepClock(time.Millisecond)

	assert.Equal(t, Epoch, c.Now())
	assert.Equal(t, Epoch.Add(time.Millisecond), c.Now())
	assert.Equal(t, Epoch.Add(2*time.Millisecond), c.Now())
	assert.Equal(t, int64(3), c.Readings())
}

func TestStepClock_Reset(t *testing.T) {
	c := NewStepClock(time.Second)
	c.Now()
	c.Now()
	c.Reset()

	assert.Equal(t, Epoch, c.Now(), "after Reset the clock starts over")
}

func TestStepClock_ThreadSafe(t *testing.T) {
	c := NewStepClock(time.Microsecond)
	const goroutines = 10
	const calls = 100

	var mu sync.Mutex
	seen := make(map[time.Time]bool)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				now := c.Now()
				mu.Lock()
				seen[now] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*calls, "every reading is distinct")
	assert.Equal(t, int64(goroutines*calls), c.Readings())
}

func TestStepClock_Deterministic(t *testing.T) {
	a := NewStepClock(time.Second)
	b := NewStepClock(time.Second)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Now(), b.Now())
	}
}
