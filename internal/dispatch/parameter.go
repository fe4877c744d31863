package dispatch

import (
	"math"

	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/engine"
	"github.com/roach88/sushid/internal/param"
	"github.com/roach88/sushid/internal/registry"
)

type parameterValueArgs struct {
	ProcessorID *int     `json:"processor_id"`
	ParameterID *int     `json:"parameter_id"`
	Value       *float64 `json:"value"`
}

type propertyValueArgs struct {
	ProcessorID *int    `json:"processor_id"`
	PropertyID  *int    `json:"property_id"`
	Value       *string `json:"value"`
}

// getParameter builds an engine read of the stored normalized value;
// present converts it for the caller.
func getParameter(present func(prm *registry.Parameter, normalized float64) any) beginFunc {
	return command(func(_ *Table, snap *registry.Snapshot, args parameterArgs) (plan, error) {
		p, prm, err := resolveParameter(snap, args.ProcessorID, args.ParameterID)
		if err != nil {
			return plan{}, err
		}
		return plan{
			cmd: engine.Command{Op: engine.OpGetParameter, Target: p.ID, Index: prm.ID},
			finish: func(r engine.Result) (any, error) {
				return present(prm, r.Float), nil
			},
		}, nil
	})
}

func registerParameter(t *Table) {
	t.add("GetParameterValue", kindEngine, false, getParameter(func(prm *registry.Parameter, n float64) any {
		return prm.Mapping.FromNormalized(n)
	}))

	t.add("GetParameterValueNormalised", kindEngine, false, getParameter(func(_ *registry.Parameter, n float64) any {
		return n
	}))

	t.add("GetParameterValueAsString", kindEngine, false, getParameter(func(prm *registry.Parameter, n float64) any {
		return param.Format(prm.Type, prm.Mapping.FromNormalized(n))
	}))

	t.add("SetParameterValue", kindEngine, true, command(func(_ *Table, snap *registry.Snapshot, args parameterValueArgs) (plan, error) {
		p, prm, err := resolveParameter(snap, args.ProcessorID, args.ParameterID)
		if err != nil {
			return plan{}, err
		}
		raw, err := required(args.Value, "value")
		if err != nil {
			return plan{}, err
		}
		if !param.InDomain(prm.Mapping, raw) {
			lo, hi := prm.Mapping.Domain()
			return plan{}, control.InvalidArgument("value %v outside [%v, %v] for parameter %q", raw, lo, hi, prm.Name)
		}
		if prm.Type == control.TypeInt && raw != math.Trunc(raw) {
			return plan{}, control.InvalidArgument("value %v is not an integer for parameter %q", raw, prm.Name)
		}
		return plan{cmd: engine.Command{
			Op:     engine.OpSetParameter,
			Target: p.ID,
			Index:  prm.ID,
			Float:  prm.Mapping.ToNormalized(raw),
		}}, nil
	}))

	t.add("SetParameterValueNormalised", kindEngine, true, command(func(_ *Table, snap *registry.Snapshot, args parameterValueArgs) (plan, error) {
		p, prm, err := resolveParameter(snap, args.ProcessorID, args.ParameterID)
		if err != nil {
			return plan{}, err
		}
		n, err := required(args.Value, "value")
		if err != nil {
			return plan{}, err
		}
		if err := inUnitRange(n, "value"); err != nil {
			return plan{}, err
		}
		return plan{cmd: engine.Command{Op: engine.OpSetParameter, Target: p.ID, Index: prm.ID, Float: n}}, nil
	}))

	t.add("GetStringPropertyValue", kindEngine, false, command(func(_ *Table, snap *registry.Snapshot, args propertyArgs) (plan, error) {
		p, prop, err := resolveProperty(snap, args.ProcessorID, args.PropertyID)
		if err != nil {
			return plan{}, err
		}
		return plan{
			cmd: engine.Command{Op: engine.OpGetProperty, Target: p.ID, Index: prop.ID - len(p.Parameters)},
			finish: func(r engine.Result) (any, error) {
				return r.String, nil
			},
		}, nil
	}))

	t.add("SetStringPropertyValue", kindEngine, true, command(func(_ *Table, snap *registry.Snapshot, args propertyValueArgs) (plan, error) {
		p, prop, err := resolveProperty(snap, args.ProcessorID, args.PropertyID)
		if err != nil {
			return plan{}, err
		}
		v, err := required(args.Value, "value")
		if err != nil {
			return plan{}, err
		}
		return plan{cmd: engine.Command{
			Op:     engine.OpSetProperty,
			Target: p.ID,
			Index:  prop.ID - len(p.Parameters),
			String: v,
		}}, nil
	}))
}
