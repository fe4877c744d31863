// Package harness runs scenario files against an in-process control plane.
//
// A scenario builds a host from the default configuration (or the file
// named by its config field), issues calls through the method table, and
// checks each outcome against the step's expect clause. The audio engine
// is stepped by one block per call on the harness goroutine, so runs are
// deterministic and need no audio device.
//
// # Scenario Format
//
//	name: tempo_and_parameters
//	description: "Transport and parameter round trips"
//	config: engine.yaml            # optional, relative to the scenario file
//	setup:
//	  - call: SetTempo
//	    args: { tempo: 100 }
//	flow:
//	  - call: GetTrackId
//	    args: { track_name: sampler_track }
//	    expect:
//	      result: 3
//	  - call: SetTempo
//	    args: { tempo: 0 }
//	    expect:
//	      error: InvalidArgument
//	assertions:
//	  - type: trace_contains
//	    call: SetTempo
//	    args: { tempo: 100 }
//	  - type: final_state
//	    call: GetTempo
//	    expect: 100
//	  - type: journal
//	    call: SetTempo
//	    count: 2
//
// A flow step without expect must succeed. Object results are matched as
// subsets; everything else must be equal after a JSON round trip.
//
// # Assertion Types
//
//   - trace_contains: a call with matching args appears in the trace
//   - trace_order: calls appear in the given order
//   - trace_count: a call appears exactly count times
//   - final_state: a call made after the flow returns the expected value
//   - journal: the call journal holds count entries for a method
//
// # Deterministic Testing
//
// Journal timestamps come from testutil.StepClock and the journal lives in
// an in-memory SQLite database, so traces and journals are identical across
// runs. Traces serialize through store.Canonicalize for golden comparison.
package harness
