package dispatch

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/roach88/sushid/internal/config"
	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/registry"
)

// Event types accepted in configuration files.
const (
	EventParameterChange = "parameter_change"
	EventPropertyChange  = "property_change"
	EventNoteOn          = "note_on"
	EventNoteOff         = "note_off"
)

// RunEvents applies timed configuration events through the table. Event
// times are seconds after the call. Failed events are logged and skipped.
// It returns when all events have been applied or ctx is done.
func (t *Table) RunEvents(ctx context.Context, events []config.Event) error {
	sorted := make([]config.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	start := time.Now()
	for _, ev := range sorted {
		due := start.Add(time.Duration(ev.Time * float64(time.Second)))
		if d := time.Until(due); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		method, params, err := t.eventCall(ev)
		if err != nil {
			t.logger.Warn("skipping configured event", "type", ev.Type, "time", ev.Time, "error", err)
			continue
		}
		if _, err := t.Dispatch(ctx, method, params); err != nil {
			t.logger.Warn("configured event failed", "method", method, "time", ev.Time, "error", err)
			continue
		}
		t.logger.Debug("configured event applied", "method", method, "time", ev.Time)
	}
	return nil
}

// eventCall translates a configuration event into a method call,
// resolving names to ids against the current topology.
func (t *Table) eventCall(ev config.Event) (string, json.RawMessage, error) {
	snap := t.reg.Load()
	proc, err := snap.Processor(registry.ByName(ev.Data.PluginName), nil)
	if err != nil {
		return "", nil, err
	}

	var method string
	var params map[string]any
	switch ev.Type {
	case EventParameterChange:
		prm, err := proc.Parameter(registry.ByName(ev.Data.ParameterName))
		if err != nil {
			return "", nil, err
		}
		v, ok := ev.Data.Value.(float64)
		if !ok {
			return "", nil, control.InvalidArgument("parameter_change value must be a number")
		}
		method = "SetParameterValue"
		params = map[string]any{"processor_id": proc.ID, "parameter_id": prm.ID, "value": v}
	case EventPropertyChange:
		prop, err := proc.Property(registry.ByName(ev.Data.PropertyName))
		if err != nil {
			return "", nil, err
		}
		v, ok := ev.Data.Value.(string)
		if !ok {
			return "", nil, control.InvalidArgument("property_change value must be a string")
		}
		method = "SetStringPropertyValue"
		params = map[string]any{"processor_id": proc.ID, "property_id": prop.ID, "value": v}
	case EventNoteOn, EventNoteOff:
		method = "SendNoteOn"
		if ev.Type == EventNoteOff {
			method = "SendNoteOff"
		}
		params = map[string]any{"track_id": proc.TrackID, "note": ev.Data.Note, "channel": 0, "velocity": ev.Data.Velocity}
	default:
		return "", nil, control.InvalidArgument("unknown event type %q", ev.Type)
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return "", nil, control.Internal("failed to encode event params", err)
	}
	return method, raw, nil
}
