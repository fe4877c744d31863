package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiag_SweepSucceedsOnDefaultTopology(t *testing.T) {
	url := startTestServer(t)

	buf := &bytes.Buffer{}
	cmd := NewDiagCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--url", url})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string     `json:"status"`
		Data   DiagResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Zero(t, resp.Data.Failed)
	assert.Len(t, resp.Data.Calls, len(diagSweep(diagTargets{})))

	methods := make(map[string]bool)
	for _, c := range resp.Data.Calls {
		methods[c.Method] = true
	}
	for _, m := range []string{"SetTempo", "SendNoteOn", "GetEngineTimings", "SetProcessorProgram", "SetStringPropertyValue"} {
		assert.True(t, methods[m], "sweep should call %s", m)
	}
}

func TestDiag_TextOutput(t *testing.T) {
	url := startTestServer(t)

	buf := &bytes.Buffer{}
	cmd := NewDiagCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--url", url})
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "Response from GetSamplerate:\n48000\n")
	assert.Contains(t, out, "Response from GetTempo:")
	assert.Contains(t, out, ", 0 failed")
	assert.NotContains(t, out, "Error in rpc call")
}

func TestDiag_Template(t *testing.T) {
	url := startTestServer(t)

	buf := &bytes.Buffer{}
	cmd := NewDiagCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--url", url, "--template", `{{.Method | lower}}`})
	require.NoError(t, cmd.Execute())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, len(diagSweep(diagTargets{})))
	assert.Equal(t, "getsamplerate", string(lines[0]))
}

func TestDiag_UnknownTarget(t *testing.T) {
	url := startTestServer(t)

	buf := &bytes.Buffer{}
	cmd := NewDiagCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--url", url, "--synth", "moog"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "moog")
}
