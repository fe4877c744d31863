package plugins

import (
	"math"

	"github.com/viterin/vek/vek32"
	"gitlab.com/gomidi/midi/v2"

	"github.com/roach88/sushid/internal/param"
)

const (
	PassthroughUID = "sushi.testing.passthrough"
	GainUID        = "sushi.testing.gain"
	EqualizerUID   = "sushi.testing.equalizer"
)

func init() {
	register(&Descriptor{
		UID:   PassthroughUID,
		Label: "Passthrough",
		New:   func(float64, int) Instance { return passthrough{} },
	})
	register(&Descriptor{
		UID:   GainUID,
		Label: "Gain",
		Parameters: []ParameterSpec{
			floatParam("gain", "dB", param.Linear{Min: -120, Max: 24}, 0),
		},
		New: func(float64, int) Instance { return &gain{factor: 1} },
	})
	register(&Descriptor{
		UID:   EqualizerUID,
		Label: "Equalizer",
		Parameters: []ParameterSpec{
			floatParam("frequency", "Hz", param.Logarithmic{Min: 20, Max: 20000}, 1000),
			floatParam("gain", "dB", param.Linear{Min: -24, Max: 24}, 0),
			floatParam("q", "", param.Linear{Min: 0.1, Max: 10}, 1),
		},
		New: func(samplerate float64, _ int) Instance {
			eq := &equalizer{samplerate: samplerate, freq: 1000, q: 1}
			eq.update()
			return eq
		},
	})
}

type passthrough struct{}

func (passthrough) SetParameter(int, float64) {}
func (passthrough) SetProperty(int, string)   {}
func (passthrough) HandleEvent(midi.Message)  {}
func (passthrough) Process([]float32)         {}

var gainMapping = param.Linear{Min: -120, Max: 24}

type gain struct {
	factor float32
}

func (g *gain) SetParameter(id int, n float64) {
	if id == 0 {
		g.factor = float32(param.DBToLinear(gainMapping.FromNormalized(n)))
	}
}

func (g *gain) SetProperty(int, string)  {}
func (g *gain) HandleEvent(midi.Message) {}

func (g *gain) Process(buf []float32) {
	vek32.MulNumber_Inplace(buf, g.factor)
}

var (
	eqFreqMapping = param.Logarithmic{Min: 20, Max: 20000}
	eqGainMapping = param.Linear{Min: -24, Max: 24}
	eqQMapping    = param.Linear{Min: 0.1, Max: 10}
)

// equalizer is a single peaking biquad.
type equalizer struct {
	samplerate         float64
	freq, gainDB, q    float64
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func (e *equalizer) SetParameter(id int, n float64) {
	switch id {
	case 0:
		e.freq = eqFreqMapping.FromNormalized(n)
	case 1:
		e.gainDB = eqGainMapping.FromNormalized(n)
	case 2:
		e.q = eqQMapping.FromNormalized(n)
	default:
		return
	}
	e.update()
}

func (e *equalizer) update() {
	a := math.Pow(10, e.gainDB/40)
	w0 := 2 * math.Pi * math.Min(e.freq, e.samplerate*0.49) / e.samplerate
	alpha := math.Sin(w0) / (2 * e.q)
	cosw := math.Cos(w0)
	a0 := 1 + alpha/a
	e.b0 = (1 + alpha*a) / a0
	e.b1 = -2 * cosw / a0
	e.b2 = (1 - alpha*a) / a0
	e.a1 = -2 * cosw / a0
	e.a2 = (1 - alpha/a) / a0
}

func (e *equalizer) SetProperty(int, string)  {}
func (e *equalizer) HandleEvent(midi.Message) {}

func (e *equalizer) Process(buf []float32) {
	for i, s := range buf {
		x := float64(s)
		y := e.b0*x + e.b1*e.x1 + e.b2*e.x2 - e.a1*e.y1 - e.a2*e.y2
		e.x2, e.x1 = e.x1, x
		e.y2, e.y1 = e.y1, y
		buf[i] = float32(y)
	}
}
