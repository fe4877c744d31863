package registry

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sushid/internal/config"
	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/param"
	"github.com/roach88/sushid/internal/plugins"
)

// Track is a mixer channel owning an ordered chain of processors.
type Track struct {
	ID         int
	Name       string
	Label      string
	Channels   int
	Buses      int
	Type       control.TrackType
	Processors []int
}

// Processor is one processor instance in the topology.
type Processor struct {
	ID         int
	Name       string
	Label      string
	TrackID    int
	UID        string
	Parameters []Parameter
	Properties []Property
	Programs   []plugins.Program

	descriptor *plugins.Descriptor
}

// Parameter is a numeric control of a processor.
type Parameter struct {
	ID          int
	Name        string
	Label       string
	Unit        string
	Type        control.ParameterType
	Automatable bool
	Default     float64 // raw
	Mapping     param.Mapping
}

// Property is a string control of a processor. Property ids follow the
// parameter ids in the processor's id space.
type Property struct {
	ID      int
	Name    string
	Label   string
	Default string
}

// Snapshot is an immutable view of the topology.
type Snapshot struct {
	Samplerate float64
	BufferSize int

	tracks           []*Track
	processors       []*Processor // ordered by id
	nodes            map[int]any  // id -> *Track | *Processor
	trackByName      map[string]*Track
	processorsByName map[string]*Processor
}

// Ref addresses an entity by id or by name.
type Ref struct {
	id     int
	name   string
	byName bool
}

// ByID addresses an entity by id.
func ByID(id int) Ref { return Ref{id: id} }

// ByName addresses an entity by name.
func ByName(name string) Ref { return Ref{name: name, byName: true} }

func (r Ref) String() string {
	if r.byName {
		return fmt.Sprintf("%q", r.name)
	}
	return fmt.Sprintf("%d", r.id)
}

// NormalizeName puts a name in the form used for lookups (NFC).
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// Build constructs a snapshot from a configuration. Tracks and processors
// share one id space, assigned in declaration order.
func Build(cfg *config.Config) (*Snapshot, error) {
	s := &Snapshot{
		Samplerate:       cfg.HostConfig.Samplerate,
		BufferSize:       cfg.HostConfig.BufferSize,
		nodes:            make(map[int]any),
		trackByName:      make(map[string]*Track),
		processorsByName: make(map[string]*Processor),
	}

	nextID := 0
	for _, tc := range cfg.Tracks {
		name := NormalizeName(tc.Name)
		if _, dup := s.trackByName[name]; dup {
			return nil, fmt.Errorf("duplicate track name %q", name)
		}
		track := &Track{
			ID:       nextID,
			Name:     name,
			Label:    labelOr(tc.Label, name),
			Channels: tc.Channels(),
			Buses:    tc.BusCount(),
			Type:     control.TrackType(strings.ToUpper(tc.Type)),
		}
		if track.Type == "" {
			track.Type = control.TrackRegular
		}
		nextID++

		for _, pc := range tc.Plugins {
			pname := NormalizeName(pc.Name)
			if _, dup := s.processorsByName[pname]; dup {
				return nil, fmt.Errorf("duplicate processor name %q", pname)
			}
			desc, err := plugins.Lookup(pc.UID)
			if err != nil {
				return nil, fmt.Errorf("processor %q: %w", pname, err)
			}
			proc := newProcessor(nextID, pname, labelOr(pc.Label, desc.Label), track.ID, desc)
			nextID++

			track.Processors = append(track.Processors, proc.ID)
			s.processors = append(s.processors, proc)
			s.processorsByName[pname] = proc
			s.nodes[proc.ID] = proc
		}

		s.tracks = append(s.tracks, track)
		s.trackByName[name] = track
		s.nodes[track.ID] = track
	}
	return s, nil
}

func newProcessor(id int, name, label string, trackID int, desc *plugins.Descriptor) *Processor {
	p := &Processor{
		ID:         id,
		Name:       name,
		Label:      label,
		TrackID:    trackID,
		UID:        desc.UID,
		Programs:   desc.Programs,
		descriptor: desc,
	}
	for i, spec := range desc.Parameters {
		p.Parameters = append(p.Parameters, Parameter{
			ID:          i,
			Name:        NormalizeName(spec.Name),
			Label:       spec.Label,
			Unit:        spec.Unit,
			Type:        spec.Type,
			Automatable: spec.Automatable,
			Default:     spec.Default,
			Mapping:     spec.Mapping,
		})
	}
	for i, spec := range desc.Properties {
		p.Properties = append(p.Properties, Property{
			ID:      len(desc.Parameters) + i,
			Name:    NormalizeName(spec.Name),
			Label:   spec.Label,
			Default: spec.Default,
		})
	}
	return p
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}

// NodeCount returns one past the highest track or processor id.
func (s *Snapshot) NodeCount() int {
	return len(s.nodes)
}

// Tracks returns all tracks in id order. The slice must not be modified.
func (s *Snapshot) Tracks() []*Track {
	return s.tracks
}

// Processors returns all processors in id order. The slice must not be
// modified.
func (s *Snapshot) Processors() []*Processor {
	return s.processors
}

// Track resolves a track by id or name.
func (s *Snapshot) Track(ref Ref) (*Track, error) {
	if ref.byName {
		if t, ok := s.trackByName[NormalizeName(ref.name)]; ok {
			return t, nil
		}
		return nil, control.NotFound("no track named %s", ref)
	}
	if t, ok := s.nodes[ref.id].(*Track); ok {
		return t, nil
	}
	return nil, control.NotFound("no track with id %s", ref)
}

// Processor resolves a processor by id or name. A non-nil scope restricts
// the lookup to processors owned by that track.
func (s *Snapshot) Processor(ref Ref, scope *Track) (*Processor, error) {
	var p *Processor
	if ref.byName {
		p = s.processorsByName[NormalizeName(ref.name)]
	} else {
		p, _ = s.nodes[ref.id].(*Processor)
	}
	if p == nil {
		return nil, control.NotFound("no processor %s", ref)
	}
	if scope != nil && p.TrackID != scope.ID {
		return nil, control.NotFound("processor %s is not on track %q", ref, scope.Name)
	}
	return p, nil
}

// Parameter resolves a parameter of processorID by id or name.
func (s *Snapshot) Parameter(processorID int, ref Ref) (*Processor, *Parameter, error) {
	p, err := s.Processor(ByID(processorID), nil)
	if err != nil {
		return nil, nil, err
	}
	prm, err := p.Parameter(ref)
	if err != nil {
		return nil, nil, err
	}
	return p, prm, nil
}

// Property resolves a property of processorID by id or name.
func (s *Snapshot) Property(processorID int, ref Ref) (*Processor, *Property, error) {
	p, err := s.Processor(ByID(processorID), nil)
	if err != nil {
		return nil, nil, err
	}
	prop, err := p.Property(ref)
	if err != nil {
		return nil, nil, err
	}
	return p, prop, nil
}

// Parameter resolves one of the processor's parameters.
func (p *Processor) Parameter(ref Ref) (*Parameter, error) {
	if ref.byName {
		name := NormalizeName(ref.name)
		for i := range p.Parameters {
			if p.Parameters[i].Name == name {
				return &p.Parameters[i], nil
			}
		}
		return nil, control.NotFound("processor %q has no parameter named %s", p.Name, ref)
	}
	if ref.id >= 0 && ref.id < len(p.Parameters) {
		return &p.Parameters[ref.id], nil
	}
	return nil, control.NotFound("processor %q has no parameter with id %s", p.Name, ref)
}

// Property resolves one of the processor's properties.
func (p *Processor) Property(ref Ref) (*Property, error) {
	if ref.byName {
		name := NormalizeName(ref.name)
		for i := range p.Properties {
			if p.Properties[i].Name == name {
				return &p.Properties[i], nil
			}
		}
		return nil, control.NotFound("processor %q has no property named %s", p.Name, ref)
	}
	idx := ref.id - len(p.Parameters)
	if idx >= 0 && idx < len(p.Properties) {
		return &p.Properties[idx], nil
	}
	return nil, control.NotFound("processor %q has no property with id %s", p.Name, ref)
}

// IsProperty reports whether id addresses a property rather than a
// parameter.
func (p *Processor) IsProperty(id int) bool {
	idx := id - len(p.Parameters)
	return idx >= 0 && idx < len(p.Properties)
}

// Descriptor returns the plugin type the processor instantiates.
func (p *Processor) Descriptor() *plugins.Descriptor {
	return p.descriptor
}
