package dispatch

import (
	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/registry"
)

type trackArgs struct {
	TrackID *int `json:"track_id"`
}

type trackNameArgs struct {
	TrackName *string `json:"track_name"`
}

type processorArgs struct {
	ProcessorID *int `json:"processor_id"`
}

type processorNameArgs struct {
	ProcessorName *string `json:"processor_name"`
}

type parameterArgs struct {
	ProcessorID *int `json:"processor_id"`
	ParameterID *int `json:"parameter_id"`
}

type parameterNameArgs struct {
	ProcessorID   *int    `json:"processor_id"`
	ParameterName *string `json:"parameter_name"`
}

type propertyArgs struct {
	ProcessorID *int `json:"processor_id"`
	PropertyID  *int `json:"property_id"`
}

type propertyNameArgs struct {
	ProcessorID  *int    `json:"processor_id"`
	PropertyName *string `json:"property_name"`
}

func resolveTrack(snap *registry.Snapshot, id *int) (*registry.Track, error) {
	v, err := required(id, "track_id")
	if err != nil {
		return nil, err
	}
	return snap.Track(registry.ByID(v))
}

func resolveProcessor(snap *registry.Snapshot, id *int) (*registry.Processor, error) {
	v, err := required(id, "processor_id")
	if err != nil {
		return nil, err
	}
	return snap.Processor(registry.ByID(v), nil)
}

func resolveParameter(snap *registry.Snapshot, procID, paramID *int) (*registry.Processor, *registry.Parameter, error) {
	p, err := resolveProcessor(snap, procID)
	if err != nil {
		return nil, nil, err
	}
	id, err := required(paramID, "parameter_id")
	if err != nil {
		return nil, nil, err
	}
	prm, err := p.Parameter(registry.ByID(id))
	if err != nil {
		return nil, nil, err
	}
	return p, prm, nil
}

func resolveProperty(snap *registry.Snapshot, procID, propID *int) (*registry.Processor, *registry.Property, error) {
	p, err := resolveProcessor(snap, procID)
	if err != nil {
		return nil, nil, err
	}
	id, err := required(propID, "property_id")
	if err != nil {
		return nil, nil, err
	}
	prop, err := p.Property(registry.ByID(id))
	if err != nil {
		return nil, nil, err
	}
	return p, prop, nil
}

func registerTopology(t *Table) {
	t.add("GetTracks", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, _ noArgs) (any, error) {
		tracks := snap.Tracks()
		out := make([]control.TrackInfo, len(tracks))
		for i, tr := range tracks {
			out[i] = tr.Info()
		}
		return out, nil
	}))

	t.add("GetTrackId", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, args trackNameArgs) (any, error) {
		name, err := required(args.TrackName, "track_name")
		if err != nil {
			return nil, err
		}
		tr, err := snap.Track(registry.ByName(name))
		if err != nil {
			return nil, err
		}
		return tr.ID, nil
	}))

	t.add("GetTrackInfo", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, args trackArgs) (any, error) {
		tr, err := resolveTrack(snap, args.TrackID)
		if err != nil {
			return nil, err
		}
		return tr.Info(), nil
	}))

	t.add("GetTrackProcessors", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, args trackArgs) (any, error) {
		tr, err := resolveTrack(snap, args.TrackID)
		if err != nil {
			return nil, err
		}
		out := make([]control.ProcessorInfo, 0, len(tr.Processors))
		for _, id := range tr.Processors {
			p, err := snap.Processor(registry.ByID(id), tr)
			if err != nil {
				return nil, control.Internal("track references a missing processor", err)
			}
			out = append(out, p.Info())
		}
		return out, nil
	}))

	t.add("GetTrackParameters", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, args trackArgs) (any, error) {
		tr, err := resolveTrack(snap, args.TrackID)
		if err != nil {
			return nil, err
		}
		return snap.TrackParameters(tr), nil
	}))

	t.add("GetProcessorId", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, args processorNameArgs) (any, error) {
		name, err := required(args.ProcessorName, "processor_name")
		if err != nil {
			return nil, err
		}
		p, err := snap.Processor(registry.ByName(name), nil)
		if err != nil {
			return nil, err
		}
		return p.ID, nil
	}))

	t.add("GetProcessorInfo", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, args processorArgs) (any, error) {
		p, err := resolveProcessor(snap, args.ProcessorID)
		if err != nil {
			return nil, err
		}
		return p.Info(), nil
	}))

	t.add("GetAllProcessors", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, _ noArgs) (any, error) {
		procs := snap.Processors()
		out := make([]control.ProcessorInfo, len(procs))
		for i, p := range procs {
			out[i] = p.Info()
		}
		return out, nil
	}))

	t.add("GetProcessorParameters", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, args processorArgs) (any, error) {
		p, err := resolveProcessor(snap, args.ProcessorID)
		if err != nil {
			return nil, err
		}
		return p.ParameterInfos(), nil
	}))

	t.add("GetProcessorProperties", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, args processorArgs) (any, error) {
		p, err := resolveProcessor(snap, args.ProcessorID)
		if err != nil {
			return nil, err
		}
		return p.PropertyInfos(), nil
	}))

	t.add("GetParameterId", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, args parameterNameArgs) (any, error) {
		p, err := resolveProcessor(snap, args.ProcessorID)
		if err != nil {
			return nil, err
		}
		name, err := required(args.ParameterName, "parameter_name")
		if err != nil {
			return nil, err
		}
		prm, err := p.Parameter(registry.ByName(name))
		if err != nil {
			return nil, err
		}
		return prm.ID, nil
	}))

	t.add("GetParameterInfo", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, args parameterArgs) (any, error) {
		p, prm, err := resolveParameter(snap, args.ProcessorID, args.ParameterID)
		if err != nil {
			return nil, err
		}
		return prm.Info(p.ID), nil
	}))

	t.add("GetPropertyId", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, args propertyNameArgs) (any, error) {
		p, err := resolveProcessor(snap, args.ProcessorID)
		if err != nil {
			return nil, err
		}
		name, err := required(args.PropertyName, "property_name")
		if err != nil {
			return nil, err
		}
		prop, err := p.Property(registry.ByName(name))
		if err != nil {
			return nil, err
		}
		return prop.ID, nil
	}))

	t.add("GetPropertyInfo", kindRead, false, read(func(_ *Table, snap *registry.Snapshot, args propertyArgs) (any, error) {
		p, prop, err := resolveProperty(snap, args.ProcessorID, args.PropertyID)
		if err != nil {
			return nil, err
		}
		return prop.Info(p.ID), nil
	}))
}
