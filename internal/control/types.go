package control

import (
	"fmt"
	"math"
	"strings"
)

// EngineTimingID addresses the whole-engine timing record.
const EngineTimingID = -1

// PlayingMode is the transport state.
type PlayingMode int

const (
	Stopped PlayingMode = iota
	Playing
	Recording
)

var playingModeNames = [...]string{"STOPPED", "PLAYING", "RECORDING"}

func (m PlayingMode) String() string {
	if m < 0 || int(m) >= len(playingModeNames) {
		return fmt.Sprintf("PlayingMode(%d)", int(m))
	}
	return playingModeNames[m]
}

// MarshalText encodes the mode as its upper-case name.
func (m PlayingMode) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(playingModeNames) {
		return nil, fmt.Errorf("invalid playing mode %d", int(m))
	}
	return []byte(playingModeNames[m]), nil
}

// UnmarshalText accepts the mode name in any case.
func (m *PlayingMode) UnmarshalText(text []byte) error {
	v, err := ParsePlayingMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParsePlayingMode parses a playing mode name, ignoring case.
func ParsePlayingMode(s string) (PlayingMode, error) {
	for i, name := range playingModeNames {
		if strings.EqualFold(s, name) {
			return PlayingMode(i), nil
		}
	}
	return 0, InvalidArgument("unknown playing mode %q", s)
}

// SyncMode is the tempo synchronisation source.
type SyncMode int

const (
	SyncInternal SyncMode = iota
	SyncMIDI
	SyncGate
	SyncLink
)

var syncModeNames = [...]string{"INTERNAL", "MIDI", "GATE", "LINK"}

func (m SyncMode) String() string {
	if m < 0 || int(m) >= len(syncModeNames) {
		return fmt.Sprintf("SyncMode(%d)", int(m))
	}
	return syncModeNames[m]
}

// MarshalText encodes the mode as its upper-case name.
func (m SyncMode) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(syncModeNames) {
		return nil, fmt.Errorf("invalid sync mode %d", int(m))
	}
	return []byte(syncModeNames[m]), nil
}

// UnmarshalText accepts the mode name in any case.
func (m *SyncMode) UnmarshalText(text []byte) error {
	v, err := ParseSyncMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseSyncMode parses a sync mode name, ignoring case. "ableton_link"
// is accepted as an alias of LINK.
func ParseSyncMode(s string) (SyncMode, error) {
	if strings.EqualFold(s, "ableton_link") {
		return SyncLink, nil
	}
	for i, name := range syncModeNames {
		if strings.EqualFold(s, name) {
			return SyncMode(i), nil
		}
	}
	return 0, InvalidArgument("unknown sync mode %q", s)
}

// TimeSignature is a musical meter.
type TimeSignature struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// MaxDenominator bounds the accepted time signature denominators.
const MaxDenominator = 32

// Validate checks numerator > 0 and a power-of-two denominator up to
// MaxDenominator.
func (ts TimeSignature) Validate() error {
	if ts.Numerator <= 0 {
		return InvalidArgument("time signature numerator must be positive, got %d", ts.Numerator)
	}
	d := ts.Denominator
	if d <= 0 || d > MaxDenominator || d&(d-1) != 0 {
		return InvalidArgument("time signature denominator must be a power of two up to %d, got %d", MaxDenominator, d)
	}
	return nil
}

func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Numerator, ts.Denominator)
}

// ValidateTempo checks that bpm is a finite positive number.
func ValidateTempo(bpm float64) error {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= 0 {
		return InvalidArgument("tempo must be a positive number, got %v", bpm)
	}
	return nil
}

// ParameterType is the value domain of a parameter or property.
type ParameterType string

const (
	TypeBool   ParameterType = "BOOL"
	TypeInt    ParameterType = "INT"
	TypeFloat  ParameterType = "FLOAT"
	TypeString ParameterType = "STRING"
)

// TrackType distinguishes regular tracks from the master pre/post tracks.
type TrackType string

const (
	TrackRegular TrackType = "REGULAR"
	TrackPre     TrackType = "PRE"
	TrackPost    TrackType = "POST"
)

// TrackInfo describes a track.
type TrackInfo struct {
	ID         int       `json:"id"`
	Label      string    `json:"label"`
	Name       string    `json:"name"`
	Channels   int       `json:"channels"`
	Buses      int       `json:"buses"`
	Type       TrackType `json:"type"`
	Processors []int     `json:"processors"`
}

// ProcessorInfo describes a processor.
type ProcessorInfo struct {
	ID             int    `json:"id"`
	Label          string `json:"label"`
	Name           string `json:"name"`
	ParameterCount int    `json:"parameter_count"`
	ProgramCount   int    `json:"program_count"`
}

// ParameterInfo describes a parameter. ProcessorID is set so that track
// wide listings stay addressable.
type ParameterInfo struct {
	ID             int           `json:"id"`
	ProcessorID    int           `json:"processor_id"`
	Type           ParameterType `json:"type"`
	Label          string        `json:"label"`
	Name           string        `json:"name"`
	Unit           string        `json:"unit"`
	Automatable    bool          `json:"automatable"`
	MinDomainValue float64       `json:"min_domain_value"`
	MaxDomainValue float64       `json:"max_domain_value"`
}

// PropertyInfo describes a string property.
type PropertyInfo struct {
	ID          int    `json:"id"`
	ProcessorID int    `json:"processor_id"`
	Name        string `json:"name"`
	Label       string `json:"label"`
}

// ProgramInfo names one entry of a processor's program bank.
type ProgramInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CpuTimings are processing durations as a fraction of the block period.
type CpuTimings struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}
