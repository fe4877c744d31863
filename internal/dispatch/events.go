package dispatch

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/engine"
	"github.com/roach88/sushid/internal/registry"
)

// MIDI limits for live events.
const (
	MaxNote    = 127
	MaxChannel = 15
)

type noteArgs struct {
	TrackID  *int     `json:"track_id"`
	Note     *int     `json:"note"`
	Channel  *int     `json:"channel"`
	Velocity *float64 `json:"velocity"`
}

type noteValueArgs struct {
	TrackID *int     `json:"track_id"`
	Note    *int     `json:"note"`
	Channel *int     `json:"channel"`
	Value   *float64 `json:"value"`
}

type channelValueArgs struct {
	TrackID *int     `json:"track_id"`
	Channel *int     `json:"channel"`
	Value   *float64 `json:"value"`
}

func midiRange(v *int, name string, hi int) (uint8, error) {
	n, err := required(v, name)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > hi {
		return 0, control.InvalidArgument("%s must be in [0, %d], got %d", name, hi, n)
	}
	return uint8(n), nil
}

func unitValue(v *float64, name string) (float64, error) {
	f, err := required(v, name)
	if err != nil {
		return 0, err
	}
	if err := inUnitRange(f, name); err != nil {
		return 0, err
	}
	return f, nil
}

// to7Bit scales a unit value to a MIDI data byte.
func to7Bit(v float64) uint8 {
	return uint8(v*127 + 0.5)
}

// to14Bit scales a unit value to a signed pitch bend, 0.5 being centre.
func to14Bit(v float64) int16 {
	return int16(v*16383+0.5) - 8192
}

func sendEvent(snap *registry.Snapshot, trackID *int, build func() (midi.Message, error)) (plan, error) {
	tr, err := resolveTrack(snap, trackID)
	if err != nil {
		return plan{}, err
	}
	msg, err := build()
	if err != nil {
		return plan{}, err
	}
	return plan{cmd: engine.Command{Op: engine.OpSendEvent, Target: tr.ID, Event: msg}}, nil
}

func registerEvents(t *Table) {
	t.add("SendNoteOn", kindEngine, true, command(func(_ *Table, snap *registry.Snapshot, args noteArgs) (plan, error) {
		return sendEvent(snap, args.TrackID, func() (midi.Message, error) {
			note, ch, vel, err := noteFields(args.Note, args.Channel, args.Velocity, "velocity")
			if err != nil {
				return nil, err
			}
			return midi.NoteOn(ch, note, to7Bit(vel)), nil
		})
	}))

	t.add("SendNoteOff", kindEngine, true, command(func(_ *Table, snap *registry.Snapshot, args noteArgs) (plan, error) {
		return sendEvent(snap, args.TrackID, func() (midi.Message, error) {
			// Release velocity is validated but not transmitted.
			note, ch, _, err := noteFields(args.Note, args.Channel, args.Velocity, "velocity")
			if err != nil {
				return nil, err
			}
			return midi.NoteOff(ch, note), nil
		})
	}))

	t.add("SendNoteAftertouch", kindEngine, true, command(func(_ *Table, snap *registry.Snapshot, args noteValueArgs) (plan, error) {
		return sendEvent(snap, args.TrackID, func() (midi.Message, error) {
			note, ch, v, err := noteFields(args.Note, args.Channel, args.Value, "value")
			if err != nil {
				return nil, err
			}
			return midi.PolyAfterTouch(ch, note, to7Bit(v)), nil
		})
	}))

	t.add("SendAftertouch", kindEngine, true, command(func(_ *Table, snap *registry.Snapshot, args channelValueArgs) (plan, error) {
		return sendEvent(snap, args.TrackID, func() (midi.Message, error) {
			ch, v, err := channelFields(args.Channel, args.Value)
			if err != nil {
				return nil, err
			}
			return midi.AfterTouch(ch, to7Bit(v)), nil
		})
	}))

	t.add("SendPitchBend", kindEngine, true, command(func(_ *Table, snap *registry.Snapshot, args channelValueArgs) (plan, error) {
		return sendEvent(snap, args.TrackID, func() (midi.Message, error) {
			ch, v, err := channelFields(args.Channel, args.Value)
			if err != nil {
				return nil, err
			}
			return midi.Pitchbend(ch, to14Bit(v)), nil
		})
	}))

	t.add("SendModulation", kindEngine, true, command(func(_ *Table, snap *registry.Snapshot, args channelValueArgs) (plan, error) {
		return sendEvent(snap, args.TrackID, func() (midi.Message, error) {
			ch, v, err := channelFields(args.Channel, args.Value)
			if err != nil {
				return nil, err
			}
			return midi.ControlChange(ch, modWheelCC, to7Bit(v)), nil
		})
	}))
}

const modWheelCC = 1

func noteFields(note, channel *int, value *float64, valueName string) (uint8, uint8, float64, error) {
	n, err := midiRange(note, "note", MaxNote)
	if err != nil {
		return 0, 0, 0, err
	}
	ch, err := midiRange(channel, "channel", MaxChannel)
	if err != nil {
		return 0, 0, 0, err
	}
	v, err := unitValue(value, valueName)
	if err != nil {
		return 0, 0, 0, err
	}
	return n, ch, v, nil
}

func channelFields(channel *int, value *float64) (uint8, float64, error) {
	ch, err := midiRange(channel, "channel", MaxChannel)
	if err != nil {
		return 0, 0, err
	}
	v, err := unitValue(value, "value")
	if err != nil {
		return 0, 0, err
	}
	return ch, v, nil
}
