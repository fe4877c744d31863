// Package param maps parameter values between their engineering ("raw")
// domain and the normalized [0, 1] range the engine stores.
//
// Every mapping is monotonic, so FromNormalized(ToNormalized(raw)) == raw
// for raw values inside the mapping's domain, up to floating point
// precision (and exactly for stepped and toggle mappings).
package param

import (
	"math"
)

// Mapping converts between raw and normalized parameter values.
type Mapping interface {
	// ToNormalized maps a raw value to [0, 1]. Values outside the domain
	// are clamped.
	ToNormalized(raw float64) float64
	// FromNormalized maps a normalized value back to the raw domain.
	FromNormalized(normalized float64) float64
	// Domain returns the raw bounds.
	Domain() (min, max float64)
}

// Linear maps [Min, Max] linearly.
type Linear struct {
	Min, Max float64
}

func (m Linear) ToNormalized(raw float64) float64 {
	if m.Max == m.Min {
		return 0
	}
	return Clamp01((raw - m.Min) / (m.Max - m.Min))
}

func (m Linear) FromNormalized(n float64) float64 {
	return m.Min + Clamp01(n)*(m.Max-m.Min)
}

func (m Linear) Domain() (float64, float64) { return m.Min, m.Max }

// Logarithmic maps [Min, Max] exponentially, so equal normalized steps
// are equal ratios. Used for frequencies. Min must be positive.
type Logarithmic struct {
	Min, Max float64
}

func (m Logarithmic) ToNormalized(raw float64) float64 {
	if raw <= m.Min {
		return 0
	}
	if raw >= m.Max {
		return 1
	}
	return math.Log(raw/m.Min) / math.Log(m.Max/m.Min)
}

func (m Logarithmic) FromNormalized(n float64) float64 {
	return m.Min * math.Exp(Clamp01(n)*math.Log(m.Max/m.Min))
}

func (m Logarithmic) Domain() (float64, float64) { return m.Min, m.Max }

// Stepped maps the integers in [Min, Max]. FromNormalized rounds to the
// nearest step.
type Stepped struct {
	Min, Max int
}

func (m Stepped) ToNormalized(raw float64) float64 {
	if m.Max == m.Min {
		return 0
	}
	return Clamp01((math.Round(raw) - float64(m.Min)) / float64(m.Max-m.Min))
}

func (m Stepped) FromNormalized(n float64) float64 {
	return float64(m.Min) + math.Round(Clamp01(n)*float64(m.Max-m.Min))
}

func (m Stepped) Domain() (float64, float64) { return float64(m.Min), float64(m.Max) }

// Toggle maps a boolean stored as 0 or 1.
type Toggle struct{}

func (Toggle) ToNormalized(raw float64) float64 {
	if raw >= 0.5 {
		return 1
	}
	return 0
}

func (Toggle) FromNormalized(n float64) float64 {
	if n >= 0.5 {
		return 1
	}
	return 0
}

func (Toggle) Domain() (float64, float64) { return 0, 1 }

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// InDomain reports whether raw lies inside m's domain.
func InDomain(m Mapping, raw float64) bool {
	lo, hi := m.Domain()
	return !math.IsNaN(raw) && raw >= lo && raw <= hi
}

// DBToLinear converts a decibel gain to a linear factor.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts a linear factor to decibels. Zero maps to -inf.
func LinearToDB(gain float64) float64 {
	return 20 * math.Log10(gain)
}
