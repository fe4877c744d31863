package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/viterin/vek/vek32"

	"github.com/roach88/sushid/internal/config"
	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/plugins"
	"github.com/roach88/sushid/internal/registry"
	"github.com/roach88/sushid/internal/timing"
)

// DefaultMaxPerCycle bounds the commands applied at one block boundary.
const DefaultMaxPerCycle = 64

// Messages reported by commands the audio goroutine cannot apply. The
// control plane validates before submitting, so these indicate that the
// registry and the engine topology disagree.
const (
	failNoProcessor   = "no such processor"
	failNoTrack       = "no such track"
	failParameterID   = "parameter id out of range"
	failPropertyIndex = "property index out of range"
	failProgramIndex  = "program index out of range"
	failUnknownOp     = "unknown op"
)

// Engine is the real-time audio engine.
//
// Thread-safety model:
//   - Submit(), SetReady(), Stats(): safe from any goroutine
//   - Process(), Run(): must be called from exactly one goroutine at a time
//
// INVARIANTS:
//   - Engine state is only read or written inside Process
//   - Parameter values are stored normalized
//   - Process performs no allocation and takes no locks
type Engine struct {
	samplerate  float64
	blockSize   int
	capacity    int
	maxPerCycle int

	queue  *commandQueue
	clock  *Clock
	timer  *timing.Timer
	logger *slog.Logger
	ready  atomic.Bool

	applied  atomic.Int64
	rejected atomic.Int64

	// Owned by the audio goroutine.
	transport Transport
	procs     []processorState // indexed by node id; tracks are not present
	tracks    []trackState
}

type processorState struct {
	present bool
	inst    plugins.Instance
	bypass  bool
	program int // -1 if the processor has no programs
	values  []float64
	props   []string
	presets [][]presetValue
}

type presetValue struct {
	id    int
	value float64 // normalized
}

type trackState struct {
	id    int
	chain []int
	buf   []float32
}

// Option configures an Engine.
type Option func(*Engine)

// WithCapacity sets the number of command slots (rounded up to a power of
// two).
func WithCapacity(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.capacity = n
		}
	}
}

// WithMaxPerCycle sets how many commands are applied per block.
func WithMaxPerCycle(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPerCycle = n
		}
	}
}

// WithTimer attaches a timing collector. Without one, statistics are
// never collected.
func WithTimer(t *timing.Timer) Option {
	return func(e *Engine) {
		e.timer = t
	}
}

// WithTransport sets the initial transport state.
func WithTransport(tr Transport) Option {
	return func(e *Engine) {
		e.transport = tr
	}
}

// WithLogger sets the logger used outside the audio path.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine for the topology in snap. Every processor is
// instantiated with its default parameter and property values. The engine
// starts not ready; a frontend must call SetReady (Run does so itself).
func New(snap *registry.Snapshot, opts ...Option) (*Engine, error) {
	e := &Engine{
		samplerate:  snap.Samplerate,
		blockSize:   snap.BufferSize,
		capacity:    DefaultCapacity,
		maxPerCycle: DefaultMaxPerCycle,
		clock:       NewClock(),
		logger:      slog.Default(),
		transport:   DefaultTransport(),
	}
	if e.samplerate <= 0 {
		e.samplerate = config.DefaultSamplerate
	}
	if e.blockSize <= 0 {
		e.blockSize = config.DefaultBufferSize
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.timer == nil {
		e.timer = timing.New(timing.BlockPeriod(e.blockSize, e.samplerate), 1)
	}
	e.queue = newCommandQueue(e.capacity)

	e.procs = make([]processorState, snap.NodeCount())
	for _, p := range snap.Processors() {
		st, err := newProcessorState(p, e.samplerate, e.blockSize)
		if err != nil {
			return nil, err
		}
		e.procs[p.ID] = st
	}
	for _, t := range snap.Tracks() {
		chain := make([]int, len(t.Processors))
		copy(chain, t.Processors)
		e.tracks = append(e.tracks, trackState{
			id:    t.ID,
			chain: chain,
			buf:   make([]float32, e.blockSize),
		})
	}
	return e, nil
}

func newProcessorState(p *registry.Processor, samplerate float64, blockSize int) (processorState, error) {
	st := processorState{
		present: true,
		inst:    p.Descriptor().New(samplerate, blockSize),
		program: -1,
		values:  make([]float64, len(p.Parameters)),
		props:   make([]string, len(p.Properties)),
	}
	for i, prm := range p.Parameters {
		st.values[i] = prm.Mapping.ToNormalized(prm.Default)
		st.inst.SetParameter(i, st.values[i])
	}
	for i, prop := range p.Properties {
		st.props[i] = prop.Default
		if prop.Default != "" {
			st.inst.SetProperty(i, prop.Default)
		}
	}
	for _, prog := range p.Programs {
		preset := make([]presetValue, 0, len(prog.Preset))
		for name, raw := range prog.Preset {
			prm, err := p.Parameter(registry.ByName(name))
			if err != nil {
				return st, fmt.Errorf("processor %q program %q: %w", p.Name, prog.Name, err)
			}
			preset = append(preset, presetValue{id: prm.ID, value: prm.Mapping.ToNormalized(raw)})
		}
		sort.Slice(preset, func(i, j int) bool { return preset[i].id < preset[j].id })
		st.presets = append(st.presets, preset)
	}
	if len(st.presets) > 0 {
		st.program = 0
	}
	return st, nil
}

// Samplerate returns the engine samplerate.
func (e *Engine) Samplerate() float64 { return e.samplerate }

// BlockSize returns the number of frames rendered per block.
func (e *Engine) BlockSize() int { return e.blockSize }

// Clock returns the engine's block counter.
func (e *Engine) Clock() *Clock { return e.clock }

// Timer returns the timing collector.
func (e *Engine) Timer() *timing.Timer { return e.timer }

// SetReady marks whether a frontend is driving Process. Submit fails with
// ErrNotReady while the engine is not ready.
func (e *Engine) SetReady(ready bool) {
	e.ready.Store(ready)
}

// Ready reports whether the engine accepts commands.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// Submit queues cmd for the audio goroutine. It never blocks. The returned
// Handle must be waited on.
func (e *Engine) Submit(cmd Command) (Handle, error) {
	if !e.ready.Load() {
		return Handle{}, ErrNotReady
	}
	idx, ok := e.queue.submit(cmd)
	if !ok {
		e.rejected.Add(1)
		return Handle{}, ErrChannelFull
	}
	return Handle{q: e.queue, idx: idx, op: cmd.Op}, nil
}

// Do submits cmd and waits for its result.
func (e *Engine) Do(ctx context.Context, cmd Command) (Result, error) {
	h, err := e.Submit(cmd)
	if err != nil {
		return Result{}, err
	}
	return h.Wait(ctx)
}

// Stats is a point-in-time summary of engine activity.
type Stats struct {
	Cycles   int64
	Frames   int64
	Applied  int64
	Rejected int64
	Pending  int
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Cycles:   e.clock.Cycles(),
		Frames:   e.clock.Frames(),
		Applied:  e.applied.Load(),
		Rejected: e.rejected.Load(),
		Pending:  e.queue.Len(),
	}
}

// Process applies pending commands and renders len(out) mono frames into
// out. Audio goroutine only.
func (e *Engine) Process(out []float32) {
	start := e.timer.Start()
	e.drain()
	for off := 0; off < len(out); off += e.blockSize {
		e.render(out[off:min(off+e.blockSize, len(out))])
	}
	e.clock.Advance(len(out))
	e.timer.Stop(control.EngineTimingID, start)
}

func (e *Engine) drain() {
	for i := 0; i < e.maxPerCycle; i++ {
		s, idx, ok := e.queue.next()
		if !ok {
			return
		}
		e.apply(s)
		e.applied.Add(1)
		e.queue.complete(s, idx)
	}
}

func (e *Engine) render(out []float32) {
	clear(out)
	n := len(out)
	for i := range e.tracks {
		t := &e.tracks[i]
		ts := e.timer.Start()
		buf := t.buf[:n]
		clear(buf)
		for _, id := range t.chain {
			p := &e.procs[id]
			if p.bypass {
				continue
			}
			ps := e.timer.Start()
			p.inst.Process(buf)
			e.timer.Stop(id, ps)
		}
		vek32.Add_Inplace(out, buf)
		e.timer.Stop(t.id, ts)
	}
}

func (e *Engine) processor(id int) *processorState {
	if id < 0 || id >= len(e.procs) || !e.procs[id].present {
		return nil
	}
	return &e.procs[id]
}

func (e *Engine) track(id int) *trackState {
	for i := range e.tracks {
		if e.tracks[i].id == id {
			return &e.tracks[i]
		}
	}
	return nil
}

// apply executes one command against engine state. Audio goroutine only.
func (e *Engine) apply(s *slot) {
	c := &s.cmd
	switch c.Op {
	case OpGetPlayingMode:
		s.res.Int = int(e.transport.PlayingMode)
	case OpSetPlayingMode:
		e.transport.PlayingMode = control.PlayingMode(c.Int)
	case OpGetSyncMode:
		s.res.Int = int(e.transport.SyncMode)
	case OpSetSyncMode:
		e.transport.SyncMode = control.SyncMode(c.Int)
	case OpGetTempo:
		s.res.Float = e.transport.Tempo
	case OpSetTempo:
		e.transport.Tempo = c.Float
	case OpGetTimeSignature:
		s.res.TimeSignature = e.transport.TimeSignature
	case OpSetTimeSignature:
		e.transport.TimeSignature = c.TimeSignature

	case OpSendEvent:
		t := e.track(c.Target)
		if t == nil {
			s.fail = failNoTrack
			return
		}
		for _, id := range t.chain {
			if p := &e.procs[id]; !p.bypass {
				p.inst.HandleEvent(c.Event)
			}
		}

	case OpGetBypass, OpSetBypass, OpGetProgram, OpSetProgram,
		OpGetParameter, OpSetParameter, OpGetProperty, OpSetProperty:
		p := e.processor(c.Target)
		if p == nil {
			s.fail = failNoProcessor
			return
		}
		e.applyProcessor(s, p)

	default:
		s.fail = failUnknownOp
	}
}

func (e *Engine) applyProcessor(s *slot, p *processorState) {
	c := &s.cmd
	switch c.Op {
	case OpGetBypass:
		s.res.Bool = p.bypass
	case OpSetBypass:
		p.bypass = c.Bool
	case OpGetProgram:
		s.res.Int = p.program
	case OpSetProgram:
		if c.Index < 0 || c.Index >= len(p.presets) {
			s.fail = failProgramIndex
			return
		}
		p.program = c.Index
		for _, pv := range p.presets[c.Index] {
			p.values[pv.id] = pv.value
			p.inst.SetParameter(pv.id, pv.value)
		}
	case OpGetParameter:
		if c.Index < 0 || c.Index >= len(p.values) {
			s.fail = failParameterID
			return
		}
		s.res.Float = p.values[c.Index]
	case OpSetParameter:
		if c.Index < 0 || c.Index >= len(p.values) {
			s.fail = failParameterID
			return
		}
		p.values[c.Index] = c.Float
		p.inst.SetParameter(c.Index, c.Float)
	case OpGetProperty:
		if c.Index < 0 || c.Index >= len(p.props) {
			s.fail = failPropertyIndex
			return
		}
		s.res.String = p.props[c.Index]
	case OpSetProperty:
		if c.Index < 0 || c.Index >= len(p.props) {
			s.fail = failPropertyIndex
			return
		}
		p.props[c.Index] = c.String
		p.inst.SetProperty(c.Index, c.String)
	}
}

// Run drives the engine from a wall-clock ticker at the block period and
// discards the rendered audio. It marks the engine ready while running and
// returns when ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	period := timing.BlockPeriod(e.blockSize, e.samplerate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	buf := make([]float32, e.blockSize)
	e.SetReady(true)
	defer e.SetReady(false)
	e.logger.Info("engine starting", "frontend", "offline", "samplerate", e.samplerate, "buffer_size", e.blockSize)

	for {
		select {
		case <-ctx.Done():
			st := e.Stats()
			e.logger.Info("engine stopping: context cancelled", "cycles", st.Cycles, "applied", st.Applied, "rejected", st.Rejected)
			return ctx.Err()
		case <-ticker.C:
			e.Process(buf)
		}
	}
}
