package ring

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundUp(t *testing.T) {
	assert.Equal(t, 2, RoundUp(0))
	assert.Equal(t, 2, RoundUp(2))
	assert.Equal(t, 4, RoundUp(3))
	assert.Equal(t, 256, RoundUp(200))
	assert.Equal(t, 256, RoundUp(256))
}

func TestRing_FIFO(t *testing.T) {
	r := New[int](4)
	require.Equal(t, 4, r.Cap())

	for i := 0; i < 4; i++ {
		require.True(t, r.Push(i))
	}
	assert.False(t, r.Push(99), "push into a full ring must fail")
	assert.Equal(t, 4, r.Len())

	for i := 0; i < 4; i++ {
		v, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestRing_WrapAround(t *testing.T) {
	r := New[int](2)
	for i := 0; i < 100; i++ {
		require.True(t, r.Push(i))
		v, ok := r.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	assert.Equal(t, 0, r.Len())
}

func TestRing_FullThenRecover(t *testing.T) {
	r := New[string](2)
	require.True(t, r.Push("a"))
	require.True(t, r.Push("b"))
	require.False(t, r.Push("c"))

	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	assert.True(t, r.Push("c"))
	v, _ = r.Pop()
	assert.Equal(t, "b", v)
	v, _ = r.Pop()
	assert.Equal(t, "c", v)
}

func TestRing_ConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 1000

	r := New[int](64)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !r.Push(p*perProducer + i) {
				}
			}
		}(p)
	}

	got := make([]int, 0, producers*perProducer)
	lastSeen := make(map[int]int)
	for len(got) < producers*perProducer {
		v, ok := r.Pop()
		if !ok {
			continue
		}
		p := v / perProducer
		if last, seen := lastSeen[p]; seen {
			require.Greater(t, v, last, "values from one producer must stay in order")
		}
		lastSeen[p] = v
		got = append(got, v)
	}
	wg.Wait()

	sort.Ints(got)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}
