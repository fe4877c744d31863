// Package config loads the engine configuration: host settings, the track
// and processor topology, and an optional list of timed events.
//
// Files are YAML or JSON (JSON is parsed by the YAML decoder). Every file
// is validated against the embedded CUE schema before it is decoded, so a
// Config returned by this package is structurally valid. Semantic checks
// that need the plugin catalog (unknown UIDs, duplicate names) happen when
// the registry is built.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/plugins"
)

// Defaults applied to omitted host settings.
const (
	DefaultSamplerate = 48000
	DefaultBufferSize = 64
	DefaultTempo      = 120
)

// Config is a complete engine configuration.
type Config struct {
	HostConfig HostConfig `json:"host_config"`
	Tracks     []Track    `json:"tracks"`
	Events     []Event    `json:"events,omitempty"`
}

// HostConfig holds global engine settings.
type HostConfig struct {
	Samplerate    float64                `json:"samplerate"`
	BufferSize    int                    `json:"buffer_size,omitempty"`
	Tempo         float64                `json:"tempo,omitempty"`
	TimeSignature *control.TimeSignature `json:"time_signature,omitempty"`
	PlayingMode   string                 `json:"playing_mode,omitempty"`
	TempoSync     string                 `json:"tempo_sync,omitempty"`
}

// Track declares a track and its processor chain, in processing order.
type Track struct {
	Name    string   `json:"name"`
	Label   string   `json:"label,omitempty"`
	Mode    string   `json:"mode,omitempty"`
	Type    string   `json:"type,omitempty"`
	Buses   int      `json:"buses,omitempty"`
	Plugins []Plugin `json:"plugins"`
}

// Channels returns the channel count implied by the track mode.
func (t Track) Channels() int {
	switch t.Mode {
	case "mono":
		return 1
	case "multibus":
		return 2 * t.BusCount()
	default:
		return 2
	}
}

// BusCount returns the number of stereo buses, at least one.
func (t Track) BusCount() int {
	if t.Buses < 1 {
		return 1
	}
	return t.Buses
}

// Plugin declares one processor instance.
type Plugin struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
	UID   string `json:"uid"`
	Type  string `json:"type,omitempty"`
}

// Event is a timed control event applied after the engine starts.
type Event struct {
	Time float64   `json:"time"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData carries the event payload. Value is a number for
// parameter_change and a string for property_change.
type EventData struct {
	PluginName    string  `json:"plugin_name"`
	ParameterName string  `json:"parameter_name,omitempty"`
	PropertyName  string  `json:"property_name,omitempty"`
	Value         any     `json:"value,omitempty"`
	Note          int     `json:"note,omitempty"`
	Velocity      float64 `json:"velocity,omitempty"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates and decodes a YAML or JSON document.
func Parse(data []byte) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if raw == nil {
		return nil, &SchemaError{Path: "", Message: "empty configuration"}
	}

	if err := Validate(raw); err != nil {
		return nil, err
	}

	// The schema has already accepted the document, so the strict JSON
	// decode below only maps it onto the Go types.
	canonical, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(canonical))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	h := &c.HostConfig
	if h.Samplerate == 0 {
		h.Samplerate = DefaultSamplerate
	}
	if h.BufferSize == 0 {
		h.BufferSize = DefaultBufferSize
	}
	if h.Tempo == 0 {
		h.Tempo = DefaultTempo
	}
	if h.TimeSignature == nil {
		h.TimeSignature = &control.TimeSignature{Numerator: 4, Denominator: 4}
	}
	if h.PlayingMode == "" {
		h.PlayingMode = "stopped"
	}
	if h.TempoSync == "" {
		h.TempoSync = "internal"
	}
	for i := range c.Tracks {
		if c.Tracks[i].Mode == "" {
			c.Tracks[i].Mode = "stereo"
		}
		if c.Tracks[i].Type == "" {
			c.Tracks[i].Type = "regular"
		}
	}
}

// Default returns the built-in configuration used when no file is given:
// a synth track and a sampler track.
func Default() *Config {
	cfg := &Config{
		HostConfig: HostConfig{Samplerate: DefaultSamplerate},
		Tracks: []Track{
			{
				Name: "analog_synth",
				Plugins: []Plugin{
					{Name: "jx10", UID: plugins.SynthUID, Type: "internal"},
					{Name: "eq", UID: plugins.EqualizerUID, Type: "internal"},
				},
			},
			{
				Name: "sampler_track",
				Plugins: []Plugin{
					{Name: "sampler", UID: plugins.SamplerUID, Type: "internal"},
					{Name: "gain", UID: plugins.GainUID, Type: "internal"},
				},
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}
