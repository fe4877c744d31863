package dispatch

import (
	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/engine"
	"github.com/roach88/sushid/internal/registry"
)

type bypassArgs struct {
	ProcessorID *int  `json:"processor_id"`
	Value       *bool `json:"value"`
}

type programArgs struct {
	ProcessorID *int `json:"processor_id"`
	Program     *int `json:"program"`
}

func requirePrograms(p *registry.Processor) error {
	if len(p.Programs) == 0 {
		return control.InvalidArgument("processor %q has no programs", p.Name)
	}
	return nil
}

func resolveProgram(snap *registry.Snapshot, args programArgs) (*registry.Processor, int, error) {
	p, err := resolveProcessor(snap, args.ProcessorID)
	if err != nil {
		return nil, 0, err
	}
	if err := requirePrograms(p); err != nil {
		return nil, 0, err
	}
	idx, err := required(args.Program, "program")
	if err != nil {
		return nil, 0, err
	}
	if idx < 0 || idx >= len(p.Programs) {
		return nil, 0, control.InvalidArgument("program %d out of range for processor %q (0..%d)", idx, p.Name, len(p.Programs)-1)
	}
	return p, idx, nil
}

func registerProcessor(t *Table) {
	t.add("GetProcessorBypassState", kindEngine, false, command(func(_ *Table, snap *registry.Snapshot, args processorArgs) (plan, error) {
		p, err := resolveProcessor(snap, args.ProcessorID)
		if err != nil {
			return plan{}, err
		}
		return plan{
			cmd: engine.Command{Op: engine.OpGetBypass, Target: p.ID},
			finish: func(r engine.Result) (any, error) {
				return r.Bool, nil
			},
		}, nil
	}))

	t.add("SetProcessorBypassState", kindEngine, true, command(func(_ *Table, snap *registry.Snapshot, args bypassArgs) (plan, error) {
		p, err := resolveProcessor(snap, args.ProcessorID)
		if err != nil {
			return plan{}, err
		}
		v, err := required(args.Value, "value")
		if err != nil {
			return plan{}, err
		}
		return plan{cmd: engine.Command{Op: engine.OpSetBypass, Target: p.ID, Bool: v}}, nil
	}))

	t.add("GetProcessorCurrentProgram", kindEngine, false, command(func(_ *Table, snap *registry.Snapshot, args processorArgs) (plan, error) {
		p, err := resolveProcessor(snap, args.ProcessorID)
		if err != nil {
			return plan{}, err
		}
		return plan{
			cmd: engine.Command{Op: engine.OpGetProgram, Target: p.ID},
			finish: func(r engine.Result) (any, error) {
				return r.Int, nil
			},
		}, nil
	}))

	t.add("GetProcessorCurrentProgramName", kindEngine, false, command(func(_ *Table, snap *registry.Snapshot, args processorArgs) (plan, error) {
		p, err := resolveProcessor(snap, args.ProcessorID)
		if err != nil {
			return plan{}, err
		}
		if err := requirePrograms(p); err != nil {
			return plan{}, err
		}
		return plan{
			cmd: engine.Command{Op: engine.OpGetProgram, Target: p.ID},
			finish: func(r engine.Result) (any, error) {
				if r.Int < 0 || r.Int >= len(p.Programs) {
					return nil, control.Internal("engine reported an unknown program", nil)
				}
				return p.Programs[r.Int].Name, nil
			},
		}, nil
	}))

	t.add("GetProcessorProgramName", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, args programArgs) (any, error) {
		p, idx, err := resolveProgram(snap, args)
		if err != nil {
			return nil, err
		}
		return p.Programs[idx].Name, nil
	}))

	t.add("GetProcessorPrograms", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, args processorArgs) (any, error) {
		p, err := resolveProcessor(snap, args.ProcessorID)
		if err != nil {
			return nil, err
		}
		if err := requirePrograms(p); err != nil {
			return nil, err
		}
		return p.ProgramInfos(), nil
	}))

	t.add("SetProcessorProgram", kindEngine, true, command(func(_ *Table, snap *registry.Snapshot, args programArgs) (plan, error) {
		p, idx, err := resolveProgram(snap, args)
		if err != nil {
			return plan{}, err
		}
		return plan{cmd: engine.Command{Op: engine.OpSetProgram, Target: p.ID, Index: idx}}, nil
	}))
}
