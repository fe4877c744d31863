package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tempoScenario = `
name: tempo
description: "tempo round trip"
flow:
  - call: SetTempo
    args: { tempo: 90 }
  - call: GetTempo
    expect:
      result: 90
assertions:
  - type: journal
    call: SetTempo
    count: 1
`

const failingScenario = `
name: wrong_tempo
description: "expects the wrong tempo"
flow:
  - call: GetTempo
    expect:
      result: 77
assertions:
  - type: trace_count
    call: GetTempo
    count: 1
`

func executeTest(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTest_PassingScenarioWithoutGolden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tempo.yaml", tempoScenario)

	out, err := executeTest(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ tempo")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTest_UpdateThenMatchGolden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tempo.yaml", tempoScenario)

	out, err := executeTest(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "tempo.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"tempo"`)

	_, err = executeTest(t, "text", dir)
	require.NoError(t, err)

	writeFile(t, dir, "golden/tempo.golden", `{"scenario_name":"tempo","trace":[]}`)
	out, err = executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTest_FailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tempo.yaml", tempoScenario)
	writeFile(t, dir, "wrong.yaml", failingScenario)

	out, err := executeTest(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "wrong_tempo", resp.Data.Scenarios[1].Name)
	assert.NotEmpty(t, resp.Data.Scenarios[1].Errors)
}

func TestTest_Filter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tempo.yaml", tempoScenario)
	writeFile(t, dir, "wrong.yaml", failingScenario)

	out, err := executeTest(t, "text", dir, "--filter", "tem*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTest_MissingDirectory(t *testing.T) {
	_, err := executeTest(t, "text", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_BundledScenarios(t *testing.T) {
	dir := filepath.Join("..", "harness", "testdata")

	out, err := executeTest(t, "text", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ transport_and_parameters")
}
