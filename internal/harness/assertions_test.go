package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sushid/internal/store"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Call: "SetTempo", Args: map[string]any{"tempo": 100.0}},
		{Seq: 2, Call: "GetTempo", Result: 100.0},
		{Seq: 3, Call: "SetPlayingMode", Args: map[string]any{"mode": "PLAYING"}},
		{Seq: 4, Call: "SetTempo", Args: map[string]any{"tempo": 0.0}, Error: "InvalidArgument"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Call: "SetTempo", Args: map[string]any{"tempo": 100}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Call: "GetTempo"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Call: "SetPlayingMode", Args: map[string]any{"mode": "PLAYING"}}))

	err := assertTraceContains(trace, Assertion{Call: "SetTempo", Args: map[string]any{"tempo": 120}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "[4] SetTempo map[tempo:0] -> InvalidArgument")

	assert.Error(t, assertTraceContains(trace, Assertion{Call: "GetTempo", Args: map[string]any{"x": 1}}))
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Calls: []string{"SetTempo", "GetTempo", "SetPlayingMode"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Calls: []string{"SetTempo", "SetPlayingMode"}}))

	err := assertTraceOrder(trace, Assertion{Calls: []string{"SetPlayingMode", "GetTempo"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SetPlayingMode (pos 3) should be before GetTempo (pos 2)")

	err = assertTraceOrder(trace, Assertion{Calls: []string{"SetTempo", "GetTracks"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing call: GetTracks")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Call: "SetTempo", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Call: "GetTracks", Count: 0}))

	err := assertTraceCount(trace, Assertion{Call: "GetTempo", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences of GetTempo")
	assert.Contains(t, err.Error(), "Actual: 1 occurrences")
}

func TestAssertFinalState(t *testing.T) {
	actx := &AssertionContext{
		Ctx: context.Background(),
		Call: func(method string, args map[string]any) (any, error) {
			switch method {
			case "GetTimeSignature":
				return struct {
					Numerator   int `json:"numerator"`
					Denominator int `json:"denominator"`
				}{6, 8}, nil
			default:
				return nil, assert.AnError
			}
		},
	}

	assert.NoError(t, assertFinalState(actx, Assertion{Call: "GetTimeSignature", Expect: map[string]any{"denominator": 8}}))

	err := assertFinalState(actx, Assertion{Call: "GetTimeSignature", Expect: map[string]any{"denominator": 4}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GetTimeSignature = map[denominator:8 numerator:6]")

	err = assertFinalState(actx, Assertion{Call: "GetTempo", Expect: 120})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GetTempo to succeed")
}

func TestAssertJournal(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for i, method := range []string{"SetTempo", "SetTempo", "SetPlayingMode"} {
		_, err := st.WriteCall(ctx, store.Call{SessionID: "s", RequestID: string(rune('1' + i)), Method: method, Outcome: store.OutcomeOK})
		require.NoError(t, err)
	}
	_, err = st.WriteCall(ctx, store.Call{SessionID: "other", Method: "SetTempo", Outcome: store.OutcomeOK})
	require.NoError(t, err)

	actx := &AssertionContext{Ctx: ctx, Store: st, Session: "s"}

	assert.NoError(t, assertJournal(actx, Assertion{Call: "SetTempo", Count: 2}))
	assert.NoError(t, assertJournal(actx, Assertion{Count: 3}))

	err = assertJournal(actx, Assertion{Call: "SetPlayingMode", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 journal entries for SetPlayingMode")
	assert.Contains(t, err.Error(), "1 [SetPlayingMode:ok]")
}

func TestEvaluateAssertions_MissingContext(t *testing.T) {
	result := NewResult()
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, Call: "GetTempo", Expect: 1},
		{Type: AssertJournal, Count: 0},
		{Type: "bogus"},
		{Type: AssertTraceCount, Call: "GetTempo", Count: 0},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "final_state requires a running host")
	assert.Contains(t, errs[1], "journal requires a journal")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}
