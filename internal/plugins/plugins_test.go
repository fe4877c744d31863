package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/roach88/sushid/internal/param"
)

func TestLookup(t *testing.T) {
	d, err := Lookup(SynthUID)
	require.NoError(t, err)
	assert.Equal(t, "Polyphonic Synth", d.Label)
	assert.Len(t, d.Programs, 4)

	_, err = Lookup("sushi.testing.nope")
	assert.Error(t, err)
}

func TestList_Sorted(t *testing.T) {
	list := List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].UID, list[i].UID)
	}
}

func TestDescriptors_DefaultsInDomain(t *testing.T) {
	for _, d := range List() {
		names := map[string]bool{}
		for _, p := range d.Parameters {
			assert.True(t, param.InDomain(p.Mapping, p.Default), "%s/%s default out of domain", d.UID, p.Name)
			assert.False(t, names[p.Name], "%s has duplicate parameter %s", d.UID, p.Name)
			names[p.Name] = true
		}
		for _, prog := range d.Programs {
			for name := range prog.Preset {
				assert.True(t, names[name], "%s program %q presets unknown parameter %q", d.UID, prog.Name, name)
			}
		}
	}
}

func TestGain_Process(t *testing.T) {
	d, err := Lookup(GainUID)
	require.NoError(t, err)
	inst := d.New(48000, 4)

	inst.SetParameter(0, gainMapping.ToNormalized(-6))
	buf := []float32{1, -1, 0.5, 0}
	inst.Process(buf)
	assert.InDelta(t, 0.501187, buf[0], 1e-5)
	assert.InDelta(t, -0.501187, buf[1], 1e-5)
	assert.InDelta(t, 0.250594, buf[2], 1e-5)
	assert.Equal(t, float32(0), buf[3])
}

func TestSynth_NoteLifecycle(t *testing.T) {
	s := NewSynth(48000, 64)

	s.HandleEvent(midi.NoteOn(0, 60, 100))
	s.HandleEvent(midi.NoteOn(0, 64, 100))
	assert.Equal(t, 2, s.ActiveVoices())

	buf := make([]float32, 64)
	s.Process(buf)
	nonZero := false
	for _, v := range buf {
		if v != 0 {
			nonZero = true
		}
	}
	assert.True(t, nonZero, "sounding voices must produce output")

	s.HandleEvent(midi.NoteOff(0, 60))
	assert.Equal(t, 1, s.ActiveVoices())
	s.HandleEvent(midi.NoteOn(0, 64, 0))
	assert.Equal(t, 0, s.ActiveVoices())
}

func TestSynth_Controllers(t *testing.T) {
	s := NewSynth(48000, 64)
	s.HandleEvent(midi.ControlChange(0, modWheelCC, 127))
	assert.InDelta(t, 1.0, s.Modulation(), 1e-9)

	s.HandleEvent(midi.Pitchbend(0, 8191))
	assert.InDelta(t, pitchBendSemi, s.PitchBend(), 0.001)
	s.HandleEvent(midi.Pitchbend(0, 0))
	assert.Equal(t, 0.0, s.PitchBend())
}

func TestSampler_Property(t *testing.T) {
	d, err := Lookup(SamplerUID)
	require.NoError(t, err)
	inst := d.New(48000, 16).(*Sampler)
	inst.SetProperty(0, "kick.wav")
	assert.Equal(t, "kick.wav", inst.SampleFile())
}
