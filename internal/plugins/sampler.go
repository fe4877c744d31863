package plugins

import (
	"math"

	"github.com/viterin/vek/vek32"
	"gitlab.com/gomidi/midi/v2"

	"github.com/roach88/sushid/internal/param"
)

const SamplerUID = "sushi.testing.sampler"

var (
	samplerVolume = param.Linear{Min: -60, Max: 6}
	samplerDecay  = param.Linear{Min: 0.01, Max: 5}
)

func init() {
	register(&Descriptor{
		UID:   SamplerUID,
		Label: "Sampler",
		Parameters: []ParameterSpec{
			floatParam("volume", "dB", samplerVolume, 0),
			floatParam("decay", "s", samplerDecay, 0.5),
		},
		Properties: []PropertySpec{
			{Name: "sample_file", Label: "Sample File", Default: ""},
		},
		New: func(samplerate float64, _ int) Instance {
			return &Sampler{samplerate: samplerate, volume: 1, decay: 0.5}
		},
	})
}

// Sampler plays a decaying noise burst per note. The sample_file property
// is stored but no file is ever read on the audio goroutine.
type Sampler struct {
	samplerate float64
	sampleFile string
	volume     float32
	decay      float64
	env        float64
	noise      uint32
}

func (s *Sampler) SetParameter(id int, n float64) {
	switch id {
	case 0:
		s.volume = float32(param.DBToLinear(samplerVolume.FromNormalized(n)))
	case 1:
		s.decay = samplerDecay.FromNormalized(n)
	}
}

func (s *Sampler) SetProperty(id int, value string) {
	if id == 0 {
		s.sampleFile = value
	}
}

// SampleFile returns the current sample_file property.
func (s *Sampler) SampleFile() string {
	return s.sampleFile
}

func (s *Sampler) HandleEvent(msg midi.Message) {
	var ch, key, vel uint8
	if msg.GetNoteOn(&ch, &key, &vel) && vel > 0 {
		s.env = float64(vel) / 127
	}
}

func (s *Sampler) Process(buf []float32) {
	falloff := math.Exp(-1 / (s.decay * s.samplerate))
	for i := range buf {
		s.noise = s.noise*1664525 + 1013904223
		buf[i] += float32(s.env) * (float32(s.noise>>8)/float32(1<<24)*2 - 1)
		s.env *= falloff
	}
	vek32.MulNumber_Inplace(buf, s.volume)
}
