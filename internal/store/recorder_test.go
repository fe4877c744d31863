package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sushid/internal/testutil"
)

func TestRecorder_WritesInOrder(t *testing.T) {
	s := createTestStore(t)
	clock := testutil.NewStepClock(time.Second)
	r := NewRecorder(s, WithClock(clock.Now))

	r.OpenSession("session-1", "127.0.0.1:4000")
	params := json.RawMessage(`{"tempo":128}`)
	r.Record(Call{SessionID: "session-1", RequestID: "1", Method: "SetTempo", Params: params, Outcome: OutcomeOK})
	// The recorder copies params; later edits by the caller do not leak.
	params[2] = 'X'
	r.Record(Call{SessionID: "session-1", RequestID: "2", Method: "SetTempo", Params: json.RawMessage(`{"tempo":0}`), Outcome: "InvalidArgument", Message: "tempo must be positive"})
	r.CloseSession("session-1")
	require.NoError(t, r.Close())

	assert.Equal(t, int64(4), r.Written())
	assert.Zero(t, r.Dropped())

	ctx := context.Background()
	sess, err := s.ReadSession(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, sess.OpenedAt.Equal(testutil.Epoch))
	assert.True(t, sess.ClosedAt.Equal(testutil.Epoch.Add(3*time.Second)))

	calls, err := s.ReadCalls(ctx, CallFilter{SessionID: "session-1"})
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, `{"tempo":128}`, string(calls[0].Params))
	assert.True(t, calls[0].RecordedAt.Equal(testutil.Epoch.Add(time.Second)))
	assert.Equal(t, "InvalidArgument", calls[1].Outcome)
	assert.Equal(t, "tempo must be positive", calls[1].Message)
}

func TestRecorder_DropsAfterClose(t *testing.T) {
	s := createTestStore(t)
	r := NewRecorder(s)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	r.Record(Call{SessionID: "late", Method: "SetTempo", Outcome: OutcomeOK})
	assert.Equal(t, int64(1), r.Dropped())

	n, err := s.CountCalls(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecorder_InvalidParamsAreLoggedNotWritten(t *testing.T) {
	s := createTestStore(t)
	r := NewRecorder(s)
	r.Record(Call{SessionID: "s", Method: "SetTempo", Params: json.RawMessage(`{"tempo":`), Outcome: OutcomeOK})
	require.NoError(t, r.Close())

	assert.Zero(t, r.Written())
	n, err := s.CountCalls(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
