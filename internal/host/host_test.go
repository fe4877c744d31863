package host

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sushid/internal/config"
)

func TestBuild_Default(t *testing.T) {
	h, err := Build(nil, Options{})
	require.NoError(t, err)

	assert.Len(t, h.Config.Tracks, 2)
	assert.False(t, h.Timer.Enabled())
	assert.False(t, h.Engine.Ready())
	assert.True(t, h.Table.Has("SetTempo"))
}

func TestBuild_StepAppliesCommands(t *testing.T) {
	h, err := Build(nil, Options{TimingStatistics: true, CallTimeout: -1})
	require.NoError(t, err)
	h.Engine.SetReady(true)

	p, err := h.Table.Begin("SetTempo", []byte(`{"tempo":99}`))
	require.NoError(t, err)
	h.Step(1)
	_, err = p.Wait(context.Background())
	require.NoError(t, err)

	p, err = h.Table.Begin("GetTempo", nil)
	require.NoError(t, err)
	h.Step(1)
	v, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 99.0, v)
	assert.True(t, h.Timer.Enabled())
}

func TestBuild_InvalidTopology(t *testing.T) {
	cfg := config.Default()
	cfg.Tracks[1].Name = cfg.Tracks[0].Name

	_, err := Build(cfg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate track name")
}

func TestBuild_InvalidTransport(t *testing.T) {
	cfg := config.Default()
	cfg.HostConfig.PlayingMode = "paused"

	_, err := Build(cfg, Options{CallTimeout: time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host_config")
}
