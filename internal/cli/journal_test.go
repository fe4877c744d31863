package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sushid/internal/store"
	"github.com/roach88/sushid/internal/testutil"
)

// createJournal writes one closed session with two applied calls, one
// failed call and one read-only call.
func createJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calls.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.WriteSession(ctx, store.Session{ID: "session-1", Remote: "127.0.0.1:5000", OpenedAt: testutil.Epoch}))

	calls := []store.Call{
		{Method: "SetTempo", Params: json.RawMessage(`{"tempo":140}`), Outcome: store.OutcomeOK},
		{Method: "SetTempo", Params: json.RawMessage(`{"tempo":0}`), Outcome: "InvalidArgument", Message: "tempo must be positive"},
		{Method: "GetTempo", Params: json.RawMessage(`{}`), Outcome: store.OutcomeOK},
		{Method: "SetTimeSignature", Params: json.RawMessage(`{"signature":{"numerator":3,"denominator":4}}`), Outcome: store.OutcomeOK},
	}
	for i, c := range calls {
		c.SessionID = "session-1"
		c.RequestID = strconv.Itoa(i + 1)
		c.RecordedAt = testutil.Epoch.Add(time.Duration(i) * time.Second)
		_, err := st.WriteCall(ctx, c)
		require.NoError(t, err)
	}
	require.NoError(t, st.CloseSession(ctx, "session-1", testutil.Epoch.Add(time.Minute)))
	return path
}

func executeJournal(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewJournalCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestJournal_ListSessions(t *testing.T) {
	db := createJournal(t)

	out, err := executeJournal(t, "json", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   []JournalSession `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "session-1", resp.Data[0].ID)
	assert.Equal(t, 4, resp.Data[0].Calls)
	assert.Equal(t, 1, resp.Data[0].Failed)
	assert.False(t, resp.Data[0].ClosedAt.IsZero())
}

func TestJournal_ListSessionsText(t *testing.T) {
	db := createJournal(t)

	out, err := executeJournal(t, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, "session-1")
	assert.Contains(t, out, "closed")
}

func TestJournal_ListCalls(t *testing.T) {
	db := createJournal(t)

	out, err := executeJournal(t, "text", "--db", db, "--session", "session-1", "--method", "SetTempo")
	require.NoError(t, err)
	assert.Contains(t, out, `{"tempo":140}`)
	assert.Contains(t, out, "InvalidArgument: tempo must be positive")
	assert.NotContains(t, out, "SetTimeSignature")
}

func TestJournal_FailedOnly(t *testing.T) {
	db := createJournal(t)

	out, err := executeJournal(t, "json", "--db", db, "--session", "session-1", "--failed")
	require.NoError(t, err)

	var resp struct {
		Data []JournalCall `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "InvalidArgument", resp.Data[0].Outcome)
}

func TestJournal_MissingDatabase(t *testing.T) {
	_, err := executeJournal(t, "text", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestJournal_RequiresDB(t *testing.T) {
	_, err := executeJournal(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}
