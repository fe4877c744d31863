// Package registry maps tracks, processors, parameters and properties to
// stable integer identities.
//
// A Snapshot is immutable once built. The Registry holds the current
// snapshot behind an atomic pointer: readers call Load and keep using the
// snapshot they got even if a new topology is published concurrently, so a
// read never observes a half-built topology.
package registry

import (
	"sync/atomic"
)

// Registry publishes the current topology snapshot.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

// New creates a registry publishing snap.
func New(snap *Snapshot) *Registry {
	r := &Registry{}
	r.current.Store(snap)
	return r
}

// Load returns the current snapshot. It never blocks.
func (r *Registry) Load() *Snapshot {
	return r.current.Load()
}

// Replace publishes snap and returns the previous snapshot.
func (r *Registry) Replace(snap *Snapshot) *Snapshot {
	return r.current.Swap(snap)
}
