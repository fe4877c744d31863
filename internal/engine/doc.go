// Package engine implements the audio engine core and its command channel.
//
// ARCHITECTURE:
//
// Single-Writer Audio Loop:
// All engine state (transport, bypass flags, programs, parameter and
// property values, processor instances) is owned by the goroutine that
// calls Process. Nothing else reads or writes it. This ensures:
// - No locks on the audio path
// - Mutations are applied at block boundaries only
// - A total order of applied commands
//
// Command Flow:
// 1. A control-plane goroutine calls Submit with a fully validated Command
// 2. Submit claims a preallocated slot and pushes its index to the pending ring
// 3. Process pops up to MaxPerCycle slots at the start of each block
// 4. The command is applied to engine state and its Result is written to the slot
// 5. The submitter's Handle.Wait observes completion and releases the slot
//
// Process never allocates, never blocks on a lock, and never waits on the
// control plane. If a submitter stops waiting (timeout, disconnect) the slot
// is abandoned and the audio goroutine reclaims it after applying.
//
// Command values are already validated and, for parameters, already
// normalized to [0, 1]; the engine stores normalized values only.
package engine
