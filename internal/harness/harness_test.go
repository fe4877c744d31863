package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_TransportAndParameters(t *testing.T) {
	scenario, err := LoadScenario("testdata/transport_and_parameters.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Trace, 12)
	assert.Equal(t, 4, result.Journaled)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, "NoSuchMethod", last.Call)
	assert.Equal(t, MethodNotFound, last.Error)
	assert.Nil(t, last.Result)
}

func TestRun_ReportsExpectationMismatches(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: mismatches
description: "every flow step is wrong"
flow:
  - call: GetTempo
    expect:
      result: 90
  - call: GetTrackId
    args: { track_name: analog_synth }
    expect:
      error: NotFound
  - call: SetTempo
    args: { tempo: -1 }
  - call: GetTrackId
    args: { track_name: nope }
    expect:
      result: 0
assertions:
  - type: trace_count
    call: GetTempo
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "flow[0] GetTempo: expected result 90, got 120")
	assert.Contains(t, result.Errors[1], "expected error NotFound, got result 0")
	assert.Contains(t, result.Errors[2], "expected success, got error InvalidArgument")
	assert.Contains(t, result.Errors[3], "expected result 0, got error NotFound")
}

func TestRun_SetupFailureAborts(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: bad_setup
description: "setup call fails"
setup:
  - call: SetTempo
    args: { tempo: 0 }
flow:
  - call: GetTempo
assertions:
  - type: trace_count
    call: GetTempo
    count: 1
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0] SetTempo failed with InvalidArgument")
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: failing_assertions
description: "assertions that do not hold"
flow:
  - call: SetTempo
    args: { tempo: 100 }
assertions:
  - type: final_state
    call: GetTempo
    expect: 99
  - type: journal
    call: SetTempo
    count: 2
  - type: trace_contains
    call: SetTempo
    args: { tempo: 101 }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "GetTempo = 100")
	assert.Contains(t, result.Errors[1], "1 [SetTempo:ok]")
	assert.Contains(t, result.Errors[2], "not found in trace")
}

func TestRun_WithConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := `
host_config:
  samplerate: 44100
  tempo: 90
tracks:
  - name: main
    plugins:
      - { name: out_gain, uid: sushi.testing.gain }
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "engine.yaml"), []byte(cfg), 0o644))
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: custom_topology
description: "a single track configuration"
config: engine.yaml
flow:
  - call: GetSamplerate
    expect:
      result: 44100
  - call: GetProcessorId
    args: { processor_name: out_gain }
    expect:
      result: 1
  - call: GetTrackId
    args: { track_name: sampler_track }
    expect:
      error: NotFound
assertions:
  - type: final_state
    call: GetTempo
    expect: 90
  - type: journal
    count: 0
`), 0o644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/transport_and_parameters.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMatchValue(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"equal scalars", 1.0, 1.0, true},
		{"different scalars", 1.0, 2.0, false},
		{"null", nil, nil, true},
		{"object subset", map[string]any{"a": 1.0}, map[string]any{"a": 1.0, "b": 2.0}, true},
		{"object missing key", map[string]any{"c": 1.0}, map[string]any{"a": 1.0}, false},
		{"nested subset", map[string]any{"a": map[string]any{"x": true}}, map[string]any{"a": map[string]any{"x": true, "y": false}}, true},
		{"array length", []any{1.0}, []any{1.0, 2.0}, false},
		{"array of objects", []any{map[string]any{"id": 3.0}}, []any{map[string]any{"id": 3.0, "name": "t"}}, true},
		{"type mismatch", map[string]any{}, []any{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchValue(tt.expected, tt.actual))
		})
	}
}
