package param

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/sushid/internal/control"
)

func TestMappings_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		mapping Mapping
		raws    []float64
	}{
		{"linear gain", Linear{Min: -120, Max: 24}, []float64{-120, -60.5, -6, 0, 12.25, 24}},
		{"linear unit", Linear{Min: 0, Max: 1}, []float64{0, 0.1, 0.5, 0.999, 1}},
		{"log frequency", Logarithmic{Min: 20, Max: 20000}, []float64{20, 100, 440, 1000, 12345.6, 20000}},
		{"stepped octave", Stepped{Min: -2, Max: 2}, []float64{-2, -1, 0, 1, 2}},
		{"stepped voices", Stepped{Min: 1, Max: 16}, []float64{1, 5, 16}},
		{"toggle", Toggle{}, []float64{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, raw := range tt.raws {
				n := tt.mapping.ToNormalized(raw)
				assert.GreaterOrEqual(t, n, 0.0)
				assert.LessOrEqual(t, n, 1.0)
				assert.InDelta(t, raw, tt.mapping.FromNormalized(n), 1e-9, "raw %v", raw)
			}
		})
	}
}

func TestMappings_Monotonic(t *testing.T) {
	mappings := []Mapping{
		Linear{Min: -24, Max: 24},
		Logarithmic{Min: 20, Max: 20000},
		Stepped{Min: 0, Max: 10},
		Toggle{},
	}
	for _, m := range mappings {
		prev := m.FromNormalized(0)
		for i := 1; i <= 100; i++ {
			v := m.FromNormalized(float64(i) / 100)
			assert.GreaterOrEqual(t, v, prev, "%T not monotonic at %d", m, i)
			prev = v
		}
	}
}

func TestMappings_Clamp(t *testing.T) {
	m := Linear{Min: 0, Max: 10}
	assert.Equal(t, 0.0, m.ToNormalized(-5))
	assert.Equal(t, 1.0, m.ToNormalized(50))
	assert.Equal(t, 10.0, m.FromNormalized(3))
}

func TestInDomain(t *testing.T) {
	m := Linear{Min: -1, Max: 1}
	assert.True(t, InDomain(m, 0))
	assert.True(t, InDomain(m, 1))
	assert.False(t, InDomain(m, 1.01))
	assert.False(t, InDomain(Toggle{}, 2))
}

func TestDecibels(t *testing.T) {
	assert.InDelta(t, 1.0, DBToLinear(0), 1e-12)
	assert.InDelta(t, 0.5011872, DBToLinear(-6), 1e-6)
	assert.InDelta(t, -6, LinearToDB(DBToLinear(-6)), 1e-9)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "True", Format(control.TypeBool, 1))
	assert.Equal(t, "False", Format(control.TypeBool, 0))
	assert.Equal(t, "-2", Format(control.TypeInt, -2))
	assert.Equal(t, "440.000000", Format(control.TypeFloat, 440))
	assert.Equal(t, "0.250000", Format(control.TypeFloat, 0.25))
}
