package dispatch

import (
	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/registry"
)

type enabledArgs struct {
	Enabled *bool `json:"enabled"`
}

var errTimingDisabled = control.Unavailable("timing statistics are disabled")

// timings reads the record for id. A node that has not been measured yet
// reports zeros.
func (t *Table) timings(id int) (any, error) {
	if !t.timer.Enabled() {
		return nil, errTimingDisabled
	}
	tm, _ := t.timer.Timings(id)
	return tm, nil
}

func registerTimings(t *Table) {
	t.add("GetTimingStatisticsEnabled", kindTiming, false, read(func(t *Table, _ *registry.Snapshot, _ noArgs) (any, error) {
		return t.timer.Enabled(), nil
	}))

	t.add("SetTimingStatisticsEnabled", kindTiming, true, read(func(t *Table, _ *registry.Snapshot, args enabledArgs) (any, error) {
		v, err := required(args.Enabled, "enabled")
		if err != nil {
			return nil, err
		}
		t.timer.SetEnabled(v)
		return nil, nil
	}))

	t.add("GetEngineTimings", kindTiming, false, read(func(t *Table, _ *registry.Snapshot, _ noArgs) (any, error) {
		return t.timings(control.EngineTimingID)
	}))

	t.add("GetTrackTimings", kindTiming, false, read(func(t *Table, snap *registry.Snapshot, args trackArgs) (any, error) {
		tr, err := resolveTrack(snap, args.TrackID)
		if err != nil {
			return nil, err
		}
		return t.timings(tr.ID)
	}))

	t.add("GetProcessorTimings", kindTiming, false, read(func(t *Table, snap *registry.Snapshot, args processorArgs) (any, error) {
		p, err := resolveProcessor(snap, args.ProcessorID)
		if err != nil {
			return nil, err
		}
		return t.timings(p.ID)
	}))

	t.add("ResetAllTimings", kindTiming, true, read(func(t *Table, _ *registry.Snapshot, _ noArgs) (any, error) {
		t.timer.ClearAll()
		return nil, nil
	}))

	t.add("ResetTrackTimings", kindTiming, true, read(func(t *Table, snap *registry.Snapshot, args trackArgs) (any, error) {
		tr, err := resolveTrack(snap, args.TrackID)
		if err != nil {
			return nil, err
		}
		t.timer.Clear(tr.ID)
		return nil, nil
	}))

	t.add("ResetProcessorTimings", kindTiming, true, read(func(t *Table, snap *registry.Snapshot, args processorArgs) (any, error) {
		p, err := resolveProcessor(snap, args.ProcessorID)
		if err != nil {
			return nil, err
		}
		t.timer.Clear(p.ID)
		return nil, nil
	}))
}
