package engine

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/roach88/sushid/internal/control"
)

// Op identifies a command applied on the audio goroutine.
type Op uint8

const (
	OpGetPlayingMode Op = iota + 1
	OpSetPlayingMode
	OpGetSyncMode
	OpSetSyncMode
	OpGetTempo
	OpSetTempo
	OpGetTimeSignature
	OpSetTimeSignature
	OpGetBypass
	OpSetBypass
	OpGetProgram
	OpSetProgram
	OpGetParameter
	OpSetParameter
	OpGetProperty
	OpSetProperty
	OpSendEvent
)

var opNames = map[Op]string{
	OpGetPlayingMode:   "get_playing_mode",
	OpSetPlayingMode:   "set_playing_mode",
	OpGetSyncMode:      "get_sync_mode",
	OpSetSyncMode:      "set_sync_mode",
	OpGetTempo:         "get_tempo",
	OpSetTempo:         "set_tempo",
	OpGetTimeSignature: "get_time_signature",
	OpSetTimeSignature: "set_time_signature",
	OpGetBypass:        "get_bypass",
	OpSetBypass:        "set_bypass",
	OpGetProgram:       "get_program",
	OpSetProgram:       "set_program",
	OpGetParameter:     "get_parameter",
	OpSetParameter:     "set_parameter",
	OpGetProperty:      "get_property",
	OpSetProperty:      "set_property",
	OpSendEvent:        "send_event",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "unknown"
}

// Command is one request for the audio goroutine. Which fields are used
// depends on Op:
//
//	Target         processor id (bypass, program, parameter, property) or track id (event)
//	Index          parameter id, property index or program index
//	Float          tempo or normalized parameter value
//	Int            playing or sync mode
//	Bool           bypass flag
//	String         property value
//	TimeSignature  time signature
//	Event          live MIDI event
type Command struct {
	Op            Op
	Target        int
	Index         int
	Float         float64
	Int           int
	Bool          bool
	String        string
	TimeSignature control.TimeSignature
	Event         midi.Message
}

// Result is the payload written back by the audio goroutine. Getters fill
// the field matching their Op; setters leave it zero.
type Result struct {
	Float         float64
	Int           int
	Bool          bool
	String        string
	TimeSignature control.TimeSignature
}

// PlayingMode returns the result as a playing mode.
func (r Result) PlayingMode() control.PlayingMode { return control.PlayingMode(r.Int) }

// SyncMode returns the result as a sync mode.
func (r Result) SyncMode() control.SyncMode { return control.SyncMode(r.Int) }
