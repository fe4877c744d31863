package dispatch

import (
	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/engine"
	"github.com/roach88/sushid/internal/registry"
)

type noArgs struct{}

type modeArgs struct {
	Mode *string `json:"mode"`
}

type tempoArgs struct {
	Tempo *float64 `json:"tempo"`
}

type signatureArgs struct {
	Signature *control.TimeSignature `json:"signature"`
}

func registerTransport(t *Table) {
	t.add("GetSamplerate", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, _ noArgs) (any, error) {
		return snap.Samplerate, nil
	}))

	t.add("GetPlayingMode", kindEngine, false, command(func(_ *Table, _ *registry.Snapshot, _ noArgs) (plan, error) {
		return plan{
			cmd: engine.Command{Op: engine.OpGetPlayingMode},
			finish: func(r engine.Result) (any, error) {
				return r.PlayingMode(), nil
			},
		}, nil
	}))

	t.add("SetPlayingMode", kindEngine, true, command(func(_ *Table, _ *registry.Snapshot, args modeArgs) (plan, error) {
		name, err := required(args.Mode, "mode")
		if err != nil {
			return plan{}, err
		}
		mode, err := control.ParsePlayingMode(name)
		if err != nil {
			return plan{}, err
		}
		return plan{cmd: engine.Command{Op: engine.OpSetPlayingMode, Int: int(mode)}}, nil
	}))

	t.add("GetSyncMode", kindEngine, false, command(func(_ *Table, _ *registry.Snapshot, _ noArgs) (plan, error) {
		return plan{
			cmd: engine.Command{Op: engine.OpGetSyncMode},
			finish: func(r engine.Result) (any, error) {
				return r.SyncMode(), nil
			},
		}, nil
	}))

	t.add("SetSyncMode", kindEngine, true, command(func(_ *Table, _ *registry.Snapshot, args modeArgs) (plan, error) {
		name, err := required(args.Mode, "mode")
		if err != nil {
			return plan{}, err
		}
		mode, err := control.ParseSyncMode(name)
		if err != nil {
			return plan{}, err
		}
		return plan{cmd: engine.Command{Op: engine.OpSetSyncMode, Int: int(mode)}}, nil
	}))

	t.add("GetTempo", kindEngine, false, command(func(_ *Table, _ *registry.Snapshot, _ noArgs) (plan, error) {
		return plan{
			cmd: engine.Command{Op: engine.OpGetTempo},
			finish: func(r engine.Result) (any, error) {
				return r.Float, nil
			},
		}, nil
	}))

	t.add("SetTempo", kindEngine, true, command(func(_ *Table, _ *registry.Snapshot, args tempoArgs) (plan, error) {
		tempo, err := required(args.Tempo, "tempo")
		if err != nil {
			return plan{}, err
		}
		if err := control.ValidateTempo(tempo); err != nil {
			return plan{}, err
		}
		return plan{cmd: engine.Command{Op: engine.OpSetTempo, Float: tempo}}, nil
	}))

	t.add("GetTimeSignature", kindEngine, false, command(func(_ *Table, _ *registry.Snapshot, _ noArgs) (plan, error) {
		return plan{
			cmd: engine.Command{Op: engine.OpGetTimeSignature},
			finish: func(r engine.Result) (any, error) {
				return r.TimeSignature, nil
			},
		}, nil
	}))

	// Numerator and denominator travel in one command so the meter is
	// never observed half-updated.
	t.add("SetTimeSignature", kindEngine, true, command(func(_ *Table, _ *registry.Snapshot, args signatureArgs) (plan, error) {
		ts, err := required(args.Signature, "signature")
		if err != nil {
			return plan{}, err
		}
		if err := ts.Validate(); err != nil {
			return plan{}, err
		}
		return plan{cmd: engine.Command{Op: engine.OpSetTimeSignature, TimeSignature: ts}}, nil
	}))
}
