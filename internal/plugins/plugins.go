// Package plugins is the catalog of built-in processors the engine can
// instantiate by UID.
//
// A Descriptor is static metadata (parameters, properties, program bank)
// and a constructor. An Instance is the per-processor DSP state; all of
// its methods are called from the audio goroutine only and must not
// allocate.
package plugins

import (
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2"

	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/param"
)

// Instance is a running processor.
type Instance interface {
	// SetParameter applies a normalized value to parameter index id.
	SetParameter(id int, normalized float64)
	// SetProperty applies a string property value. id indexes the
	// descriptor's Properties.
	SetProperty(id int, value string)
	// HandleEvent receives a live MIDI event addressed to the owning track.
	HandleEvent(msg midi.Message)
	// Process renders one block in place.
	Process(buf []float32)
}

// ParameterSpec describes one parameter of a processor type.
type ParameterSpec struct {
	Name        string
	Label       string
	Unit        string
	Type        control.ParameterType
	Mapping     param.Mapping
	Default     float64 // raw
	Automatable bool
}

// PropertySpec describes a string property.
type PropertySpec struct {
	Name    string
	Label   string
	Default string
}

// Program is a named preset. Preset values are raw, keyed by parameter
// name; parameters not listed keep their current value.
type Program struct {
	Name   string
	Preset map[string]float64
}

// Descriptor describes a processor type.
type Descriptor struct {
	UID        string
	Label      string
	Parameters []ParameterSpec
	Properties []PropertySpec
	Programs   []Program
	New        func(samplerate float64, blockSize int) Instance
}

var catalog = map[string]*Descriptor{}

func register(d *Descriptor) {
	if _, dup := catalog[d.UID]; dup {
		panic(fmt.Sprintf("plugins: duplicate uid %q", d.UID))
	}
	catalog[d.UID] = d
}

// Lookup returns the descriptor registered under uid.
func Lookup(uid string) (*Descriptor, error) {
	d, ok := catalog[uid]
	if !ok {
		return nil, fmt.Errorf("unknown plugin uid %q", uid)
	}
	return d, nil
}

// List returns all descriptors ordered by UID.
func List() []*Descriptor {
	out := make([]*Descriptor, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

func floatParam(name, unit string, m param.Mapping, def float64) ParameterSpec {
	return ParameterSpec{Name: name, Label: name, Unit: unit, Type: control.TypeFloat, Mapping: m, Default: def, Automatable: true}
}

func intParam(name string, lo, hi, def int) ParameterSpec {
	return ParameterSpec{Name: name, Label: name, Type: control.TypeInt, Mapping: param.Stepped{Min: lo, Max: hi}, Default: float64(def), Automatable: true}
}

func boolParam(name string, def bool) ParameterSpec {
	v := 0.0
	if def {
		v = 1
	}
	return ParameterSpec{Name: name, Label: name, Type: control.TypeBool, Mapping: param.Toggle{}, Default: v, Automatable: true}
}
