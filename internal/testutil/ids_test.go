package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceGenerator_Order(t *testing.T) {
	gen := NewSequenceGenerator("conn")

	assert.Equal(t, "conn-1", gen.Generate())
	assert.Equal(t, "conn-2", gen.Generate())
	assert.Equal(t, "conn-3", gen.Generate())
}

func TestSequenceGenerator_DefaultPrefix(t *testing.T) {
	gen := NewSequenceGenerator("")
	assert.Equal(t, "session-1", gen.Generate())
}

func TestSequenceGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequenceGenerator("t")

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.Generate()
				mu.Lock()
				assert.False(t, seen[id], "duplicate id %s", id)
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1000)
}
