package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sushid/internal/dispatch"
	"github.com/roach88/sushid/internal/rpc"
	"github.com/roach88/sushid/internal/store"
	"github.com/roach88/sushid/internal/testutil"
)

// startTestServer serves a driven default engine and returns its
// WebSocket URL.
func startTestServer(t *testing.T) string {
	t.Helper()
	s := testutil.NewStack(t, nil)
	s.Drive(t)
	tbl := dispatch.New(s.Registry, s.Engine, s.Timer)
	gw := rpc.NewGateway(tbl, rpc.WithIDGenerator(testutil.NewSequenceGenerator("")))
	srv := httptest.NewServer(gw)
	t.Cleanup(func() {
		srv.Close()
		_ = gw.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestServe_JournalsMutatingCalls(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "calls.db")
	ready := make(chan string, 1)

	opts := &ServeOptions{
		RootOptions:    &RootOptions{Format: "text"},
		Listen:         "127.0.0.1:0",
		Journal:        journal,
		TimingInterval: 10 * time.Millisecond,
		MaxInFlight:    rpc.DefaultMaxInFlight,
		Ready:          func(addr string) { ready <- addr },
		IDGenerator:    testutil.NewSequenceGenerator("serve"),
	}
	out := &bytes.Buffer{}
	cmd := NewServeCommand(opts.RootOptions)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- runServe(opts, cmd) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not become ready")
	}

	callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
	defer callCancel()
	client, err := rpc.Dial(callCtx, "ws://"+addr)
	require.NoError(t, err)

	require.NoError(t, client.Call(callCtx, "SetTempo", map[string]any{"tempo": 130}, nil))
	var tempo float64
	require.NoError(t, client.Call(callCtx, "GetTempo", nil, &tempo))
	assert.Equal(t, 130.0, tempo)
	require.NoError(t, client.Close())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Contains(t, out.String(), "Listening on ws://"+addr)

	st, err := store.Open(journal)
	require.NoError(t, err)
	defer st.Close()

	calls, err := st.ReadCalls(context.Background(), store.CallFilter{SessionID: "serve-1"})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "SetTempo", calls[0].Method)
	assert.True(t, calls[0].OK())
}

func TestServe_InvalidConfig(t *testing.T) {
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text"},
		Config:      filepath.Join(t.TempDir(), "missing.yaml"),
		Listen:      "127.0.0.1:0",
	}
	cmd := NewServeCommand(opts.RootOptions)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := runServe(opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "config file not found")
}
