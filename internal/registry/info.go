package registry

import (
	"github.com/roach88/sushid/internal/control"
)

// Info returns the wire description of the track.
func (t *Track) Info() control.TrackInfo {
	procs := make([]int, len(t.Processors))
	copy(procs, t.Processors)
	return control.TrackInfo{
		ID:         t.ID,
		Label:      t.Label,
		Name:       t.Name,
		Channels:   t.Channels,
		Buses:      t.Buses,
		Type:       t.Type,
		Processors: procs,
	}
}

// Info returns the wire description of the processor.
func (p *Processor) Info() control.ProcessorInfo {
	return control.ProcessorInfo{
		ID:             p.ID,
		Label:          p.Label,
		Name:           p.Name,
		ParameterCount: len(p.Parameters),
		ProgramCount:   len(p.Programs),
	}
}

// ParameterInfos describes all parameters of the processor.
func (p *Processor) ParameterInfos() []control.ParameterInfo {
	out := make([]control.ParameterInfo, len(p.Parameters))
	for i := range p.Parameters {
		out[i] = p.Parameters[i].Info(p.ID)
	}
	return out
}

// PropertyInfos describes all properties of the processor.
func (p *Processor) PropertyInfos() []control.PropertyInfo {
	out := make([]control.PropertyInfo, len(p.Properties))
	for i := range p.Properties {
		out[i] = p.Properties[i].Info(p.ID)
	}
	return out
}

// ProgramInfos lists the processor's program bank.
func (p *Processor) ProgramInfos() []control.ProgramInfo {
	out := make([]control.ProgramInfo, len(p.Programs))
	for i, prog := range p.Programs {
		out[i] = control.ProgramInfo{ID: i, Name: prog.Name}
	}
	return out
}

// Info returns the wire description of the parameter.
func (prm *Parameter) Info(processorID int) control.ParameterInfo {
	lo, hi := prm.Mapping.Domain()
	return control.ParameterInfo{
		ID:             prm.ID,
		ProcessorID:    processorID,
		Type:           prm.Type,
		Label:          prm.Label,
		Name:           prm.Name,
		Unit:           prm.Unit,
		Automatable:    prm.Automatable,
		MinDomainValue: lo,
		MaxDomainValue: hi,
	}
}

// Info returns the wire description of the property.
func (prop *Property) Info(processorID int) control.PropertyInfo {
	return control.PropertyInfo{
		ID:          prop.ID,
		ProcessorID: processorID,
		Name:        prop.Name,
		Label:       prop.Label,
	}
}

// TrackParameters aggregates the parameters of every processor on the
// track, in processing order.
func (s *Snapshot) TrackParameters(t *Track) []control.ParameterInfo {
	var out []control.ParameterInfo
	for _, id := range t.Processors {
		if p, ok := s.nodes[id].(*Processor); ok {
			out = append(out, p.ParameterInfos()...)
		}
	}
	if out == nil {
		out = []control.ParameterInfo{}
	}
	return out
}
