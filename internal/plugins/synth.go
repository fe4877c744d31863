package plugins

import (
	"math"

	"github.com/viterin/vek/vek32"
	"gitlab.com/gomidi/midi/v2"

	"github.com/roach88/sushid/internal/param"
)

const SynthUID = "sushi.testing.synth"

const (
	synthVoices   = 8
	modWheelCC    = 1
	pitchBendSemi = 2.0
)

var (
	synthCutoff = param.Logarithmic{Min: 40, Max: 16000}
	synthReso   = param.Linear{Min: 0, Max: 1}
	synthVolume = param.Linear{Min: -60, Max: 6}
	synthOctave = param.Stepped{Min: -2, Max: 2}
)

func init() {
	register(&Descriptor{
		UID:   SynthUID,
		Label: "Polyphonic Synth",
		Parameters: []ParameterSpec{
			floatParam("VCF Freq", "Hz", synthCutoff, 2000),
			floatParam("VCF Reso", "", synthReso, 0.2),
			floatParam("Volume", "dB", synthVolume, -6),
			intParam("Octave", -2, 2, 0),
			boolParam("Glide", false),
		},
		Programs: []Program{
			{Name: "Init", Preset: map[string]float64{"VCF Freq": 2000, "VCF Reso": 0.2, "Volume": -6, "Octave": 0}},
			{Name: "Bright Brass", Preset: map[string]float64{"VCF Freq": 6000, "VCF Reso": 0.4, "Volume": -8}},
			{Name: "Warm Strings", Preset: map[string]float64{"VCF Freq": 1200, "VCF Reso": 0.1, "Volume": -10, "Glide": 1}},
			{Name: "Deep Bass", Preset: map[string]float64{"VCF Freq": 300, "VCF Reso": 0.6, "Volume": -4, "Octave": -1}},
		},
		New: func(samplerate float64, blockSize int) Instance {
			return NewSynth(samplerate, blockSize)
		},
	})
}

type voice struct {
	active   bool
	channel  uint8
	note     uint8
	velocity float32
	pressure float32
	phase    float64
	freq     float64
}

// Synth is a small polyphonic sawtooth synth with a resonant one-pole
// low-pass filter.
type Synth struct {
	samplerate float64
	voices     [synthVoices]voice
	scratch    []float32

	cutoff    float64
	reso      float64
	volume    float32
	octave    int
	glide     bool
	bend      float64 // semitones
	mod       float64
	pressure  float32
	lp, lpPrv float64
}

// NewSynth creates a synth rendering at most blockSize frames per call.
func NewSynth(samplerate float64, blockSize int) *Synth {
	return &Synth{
		samplerate: samplerate,
		scratch:    make([]float32, blockSize),
		cutoff:     2000,
		volume:     float32(param.DBToLinear(-6)),
	}
}

func (s *Synth) SetParameter(id int, n float64) {
	switch id {
	case 0:
		s.cutoff = synthCutoff.FromNormalized(n)
	case 1:
		s.reso = synthReso.FromNormalized(n)
	case 2:
		s.volume = float32(param.DBToLinear(synthVolume.FromNormalized(n)))
	case 3:
		s.octave = int(synthOctave.FromNormalized(n))
	case 4:
		s.glide = n >= 0.5
	}
}

func (s *Synth) SetProperty(int, string) {}

// ActiveVoices returns the number of sounding voices.
func (s *Synth) ActiveVoices() int {
	n := 0
	for i := range s.voices {
		if s.voices[i].active {
			n++
		}
	}
	return n
}

// Modulation returns the last modulation wheel position in [0, 1].
func (s *Synth) Modulation() float64 {
	return s.mod
}

// PitchBend returns the current bend in semitones.
func (s *Synth) PitchBend() float64 {
	return s.bend
}

func (s *Synth) HandleEvent(msg midi.Message) {
	var ch, key, vel, cc, val uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		if vel == 0 {
			s.noteOff(ch, key)
			return
		}
		s.noteOn(ch, key, vel)
	case msg.GetNoteOff(&ch, &key, &vel):
		s.noteOff(ch, key)
	case msg.GetPolyAfterTouch(&ch, &key, &val):
		for i := range s.voices {
			v := &s.voices[i]
			if v.active && v.channel == ch && v.note == key {
				v.pressure = float32(val) / 127
			}
		}
	case msg.GetAfterTouch(&ch, &val):
		s.pressure = float32(val) / 127
	case msg.GetPitchBend(&ch, &rel, &abs):
		s.bend = float64(rel) / 8192 * pitchBendSemi
	case msg.GetControlChange(&ch, &cc, &val):
		if cc == modWheelCC {
			s.mod = float64(val) / 127
		}
	}
}

func (s *Synth) noteOn(ch, key, vel uint8) {
	slot := 0
	for i := range s.voices {
		if !s.voices[i].active {
			slot = i
			break
		}
	}
	v := &s.voices[slot]
	prev := v.freq
	*v = voice{
		active:   true,
		channel:  ch,
		note:     key,
		velocity: float32(vel) / 127,
		freq:     noteFrequency(float64(key) + float64(12*s.octave)),
	}
	if s.glide && prev > 0 {
		v.freq = (prev + v.freq) / 2
	}
}

func (s *Synth) noteOff(ch, key uint8) {
	for i := range s.voices {
		v := &s.voices[i]
		if v.active && v.channel == ch && v.note == key {
			v.active = false
		}
	}
}

func (s *Synth) Process(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
	tmp := s.scratch[:len(buf)]
	bendRatio := math.Pow(2, s.bend/12)
	for vi := range s.voices {
		v := &s.voices[vi]
		if !v.active {
			continue
		}
		inc := v.freq * bendRatio / s.samplerate
		for i := range tmp {
			tmp[i] = float32(2*v.phase - 1)
			v.phase += inc
			if v.phase >= 1 {
				v.phase -= 1
			}
		}
		vek32.MulNumber_Inplace(tmp, v.velocity*(1+v.pressure+s.pressure)/3)
		vek32.Add_Inplace(buf, tmp)
	}

	cutoff := math.Min(s.cutoff*(1+s.mod), s.samplerate*0.45)
	coeff := 1 - math.Exp(-2*math.Pi*cutoff/s.samplerate)
	for i, x := range buf {
		s.lp += coeff * (float64(x) - s.lp + s.reso*(s.lp-s.lpPrv))
		s.lpPrv = s.lp
		buf[i] = float32(s.lp)
	}
	vek32.MulNumber_Inplace(buf, s.volume)
}

func noteFrequency(note float64) float64 {
	return 440 * math.Pow(2, (note-69)/12)
}
