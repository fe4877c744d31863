package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator returns predictable ids for tests: "<prefix>-1",
// "<prefix>-2", and so on.
//
// It satisfies rpc.IDGenerator, so sessions created in tests have stable
// ids and golden output does not depend on random UUIDs.
//
// Thread-safety: SequenceGenerator is safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequenceGenerator creates a generator. An empty prefix defaults to
// "session".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "session"
	}
	return &SequenceGenerator{prefix: prefix, next: 1}
}

// Generate returns the next id.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("%s-%d", g.prefix, g.next)
	g.next++
	return id
}
