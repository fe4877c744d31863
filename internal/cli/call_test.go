package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCall(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCallCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCall_SetThenGet(t *testing.T) {
	url := startTestServer(t)

	out, err := executeCall(t, "text", "SetTempo", "--url", url, "--params", `{"tempo":125}`)
	require.NoError(t, err)
	assert.Equal(t, "null\n", out)

	out, err = executeCall(t, "text", "GetTempo", "--url", url)
	require.NoError(t, err)
	assert.Equal(t, "125\n", out)
}

func TestCall_JSONEnvelope(t *testing.T) {
	url := startTestServer(t)

	out, err := executeCall(t, "json", "GetTrackId", "--url", url, "--params", `{"track_name":"sampler_track"}`)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3.0, resp.Data)
}

func TestCall_Template(t *testing.T) {
	url := startTestServer(t)

	out, err := executeCall(t, "text", "GetTracks", "--url", url,
		"--template", `{{range .}}{{.id}}={{.name | upper}};{{end}}`)
	require.NoError(t, err)
	assert.Contains(t, out, "0=ANALOG_SYNTH;")
	assert.Contains(t, out, "3=SAMPLER_TRACK;")
}

func TestCall_ApplicationError(t *testing.T) {
	url := startTestServer(t)

	out, err := executeCall(t, "json", "GetTrackId", "--url", url, "--params", `{"track_name":"drums"}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCallFailed, resp.Error.Code)
	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "NotFound", details["kind"])
}

func TestCall_InvalidParams(t *testing.T) {
	_, err := executeCall(t, "text", "SetTempo", "--url", "ws://127.0.0.1:1", "--params", `[1,2]`)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCall_Unreachable(t *testing.T) {
	out, err := executeCall(t, "text", "GetTempo", "--url", "ws://127.0.0.1:1", "--timeout", "1s")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E301]")
}
