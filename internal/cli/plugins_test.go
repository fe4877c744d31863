package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlugins_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewPluginsCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string        `json:"status"`
		Data   []PluginEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	byUID := make(map[string]PluginEntry)
	for _, e := range resp.Data {
		byUID[e.UID] = e
	}

	gain, ok := byUID["sushi.testing.gain"]
	require.True(t, ok)
	require.NotEmpty(t, gain.Parameters)
	assert.Equal(t, "gain", gain.Parameters[0].Name)
	assert.Equal(t, -120.0, gain.Parameters[0].Min)
	assert.Equal(t, 24.0, gain.Parameters[0].Max)

	synth, ok := byUID["sushi.testing.synth"]
	require.True(t, ok)
	assert.Len(t, synth.Programs, 4)
}

func TestPlugins_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewPluginsCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "sushi.testing.gain")
	assert.Contains(t, out, "VCF Freq")
	assert.Contains(t, out, "sample_file")
}
