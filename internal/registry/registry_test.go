package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sushid/internal/config"
	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/plugins"
)

func buildDefault(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := Build(config.Default())
	require.NoError(t, err)
	return snap
}

func TestBuild_AssignsSharedIDSpace(t *testing.T) {
	snap := buildDefault(t)

	tracks := snap.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, 0, tracks[0].ID)
	assert.Equal(t, []int{1, 2}, tracks[0].Processors)
	assert.Equal(t, 3, tracks[1].ID)
	assert.Equal(t, []int{4, 5}, tracks[1].Processors)
	assert.Equal(t, 6, snap.NodeCount())
	assert.Equal(t, control.TrackRegular, tracks[0].Type)
	assert.Equal(t, 2, tracks[0].Channels)
}

func TestBuild_Rejects(t *testing.T) {
	dupTrack := config.Default()
	dupTrack.Tracks[1].Name = dupTrack.Tracks[0].Name
	_, err := Build(dupTrack)
	assert.ErrorContains(t, err, "duplicate track name")

	dupProc := config.Default()
	dupProc.Tracks[1].Plugins[0].Name = "jx10"
	_, err = Build(dupProc)
	assert.ErrorContains(t, err, "duplicate processor name")

	badUID := config.Default()
	badUID.Tracks[0].Plugins[0].UID = "vst.nope"
	_, err = Build(badUID)
	assert.ErrorContains(t, err, "unknown plugin uid")
}

func TestSnapshot_ResolveTrack(t *testing.T) {
	snap := buildDefault(t)

	tr, err := snap.Track(ByName("analog_synth"))
	require.NoError(t, err)
	byID, err := snap.Track(ByID(tr.ID))
	require.NoError(t, err)
	assert.Same(t, tr, byID)

	_, err = snap.Track(ByName("drums"))
	assert.True(t, control.IsNotFound(err))

	// Processor ids are not track ids.
	_, err = snap.Track(ByID(1))
	assert.True(t, control.IsNotFound(err))
	_, err = snap.Track(ByID(-1))
	assert.True(t, control.IsNotFound(err))
}

func TestSnapshot_ResolveProcessorByNameThenID(t *testing.T) {
	snap := buildDefault(t)

	p, err := snap.Processor(ByName("jx10"), nil)
	require.NoError(t, err)

	info, err := snap.Processor(ByID(p.ID), nil)
	require.NoError(t, err)
	assert.Equal(t, "jx10", info.Info().Name)
	assert.Equal(t, plugins.SynthUID, info.UID)
	assert.Equal(t, 4, info.Info().ProgramCount)
}

func TestSnapshot_ProcessorScope(t *testing.T) {
	snap := buildDefault(t)
	synthTrack, err := snap.Track(ByName("analog_synth"))
	require.NoError(t, err)

	_, err = snap.Processor(ByName("eq"), synthTrack)
	assert.NoError(t, err)

	_, err = snap.Processor(ByName("sampler"), synthTrack)
	assert.True(t, control.IsNotFound(err))
}

func TestSnapshot_ResolveParameter(t *testing.T) {
	snap := buildDefault(t)
	jx10, err := snap.Processor(ByName("jx10"), nil)
	require.NoError(t, err)

	_, prm, err := snap.Parameter(jx10.ID, ByName("VCF Freq"))
	require.NoError(t, err)
	assert.Equal(t, 0, prm.ID)
	assert.Equal(t, "Hz", prm.Unit)

	_, byID, err := snap.Parameter(jx10.ID, ByID(prm.ID))
	require.NoError(t, err)
	assert.Same(t, prm, byID)

	_, _, err = snap.Parameter(jx10.ID, ByID(99))
	assert.True(t, control.IsNotFound(err))
	_, _, err = snap.Parameter(jx10.ID, ByName("Cutoff"))
	assert.True(t, control.IsNotFound(err))
	_, _, err = snap.Parameter(0, ByID(0))
	assert.True(t, control.IsNotFound(err), "a track id is not a processor id")
}

func TestSnapshot_ResolveProperty(t *testing.T) {
	snap := buildDefault(t)
	sampler, err := snap.Processor(ByName("sampler"), nil)
	require.NoError(t, err)

	_, prop, err := snap.Property(sampler.ID, ByName("sample_file"))
	require.NoError(t, err)
	assert.Equal(t, len(sampler.Parameters), prop.ID)
	assert.True(t, sampler.IsProperty(prop.ID))
	assert.False(t, sampler.IsProperty(0))

	_, _, err = snap.Property(sampler.ID, ByID(0))
	assert.True(t, control.IsNotFound(err), "parameter ids do not resolve as properties")
}

func TestSnapshot_NFCNames(t *testing.T) {
	cfg := config.Default()
	cfg.Tracks[0].Name = "Cafe\u0301"
	snap, err := Build(cfg)
	require.NoError(t, err)

	tr, err := snap.Track(ByName("Caf\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, 0, tr.ID)
}

func TestSnapshot_TrackParameters(t *testing.T) {
	snap := buildDefault(t)
	tr, err := snap.Track(ByName("analog_synth"))
	require.NoError(t, err)

	params := snap.TrackParameters(tr)
	jx10, _ := snap.Processor(ByName("jx10"), nil)
	eq, _ := snap.Processor(ByName("eq"), nil)
	require.Len(t, params, len(jx10.Parameters)+len(eq.Parameters))
	assert.Equal(t, jx10.ID, params[0].ProcessorID)
	assert.Equal(t, eq.ID, params[len(params)-1].ProcessorID)
}

func TestRegistry_ReplaceKeepsReaderSnapshot(t *testing.T) {
	first := buildDefault(t)
	reg := New(first)

	held := reg.Load()

	cfg := config.Default()
	cfg.Tracks = cfg.Tracks[:1]
	second, err := Build(cfg)
	require.NoError(t, err)

	prev := reg.Replace(second)
	assert.Same(t, first, prev)
	assert.Len(t, held.Tracks(), 2, "a loaded snapshot is unaffected by replacement")
	assert.Len(t, reg.Load().Tracks(), 1)
}

func TestRegistry_ConcurrentLoadReplace(t *testing.T) {
	a := buildDefault(t)
	b := buildDefault(t)
	reg := New(a)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				snap := reg.Load()
				_, err := snap.Processor(ByName("jx10"), nil)
				assert.NoError(t, err)
			}
		}()
	}
	for j := 0; j < 100; j++ {
		if j%2 == 0 {
			reg.Replace(b)
		} else {
			reg.Replace(a)
		}
	}
	wg.Wait()
}
