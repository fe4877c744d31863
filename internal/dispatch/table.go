// Package dispatch maps control method names to typed handlers.
//
// Each method is classified once, when the table is built:
//
//   - read: served from the registry snapshot, never touches the audio
//     goroutine
//   - timing: served from the timing collector
//   - engine: validated and converted here, then submitted to the engine's
//     command channel; the result comes back through a Handle
//
// Arguments are keyword objects decoded strictly: unknown fields, wrong
// types and missing required fields are InvalidArgument. All validation
// runs before anything is submitted, so a failed call has no side effect.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/engine"
	"github.com/roach88/sushid/internal/registry"
	"github.com/roach88/sushid/internal/timing"
)

// DefaultCallTimeout bounds how long a call waits for the audio goroutine.
const DefaultCallTimeout = 2 * time.Second

// ErrMethodNotFound is returned by Begin for unknown method names.
var ErrMethodNotFound = errors.New("method not found")

// Submitter queues commands for the audio goroutine. Implemented by
// *engine.Engine.
type Submitter interface {
	Submit(cmd engine.Command) (engine.Handle, error)
}

type kind int

const (
	kindRead kind = iota + 1
	kindTiming
	kindEngine
)

func (k kind) String() string {
	switch k {
	case kindRead:
		return "read"
	case kindTiming:
		return "timing"
	case kindEngine:
		return "engine"
	default:
		return "unknown"
	}
}

type beginFunc func(t *Table, snap *registry.Snapshot, params json.RawMessage) (Pending, error)

type entry struct {
	kind    kind
	mutates bool
	begin   beginFunc
}

// Table is the static method table. It is safe for concurrent use.
type Table struct {
	reg     *registry.Registry
	eng     Submitter
	timer   *timing.Timer
	timeout time.Duration
	logger  *slog.Logger
	entries map[string]entry
}

// Option configures a Table.
type Option func(*Table)

// WithCallTimeout sets how long engine calls wait for completion before
// failing with Unavailable. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(t *Table) {
		t.timeout = d
	}
}

// WithLogger sets the logger used by scheduled events.
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) {
		t.logger = l
	}
}

// New builds the method table.
func New(reg *registry.Registry, eng Submitter, timer *timing.Timer, opts ...Option) *Table {
	t := &Table{
		reg:     reg,
		eng:     eng,
		timer:   timer,
		timeout: DefaultCallTimeout,
		logger:  slog.Default(),
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	registerTransport(t)
	registerTopology(t)
	registerProcessor(t)
	registerParameter(t)
	registerEvents(t)
	registerTimings(t)
	return t
}

func (t *Table) add(method string, k kind, mutates bool, begin beginFunc) {
	if _, dup := t.entries[method]; dup {
		panic(fmt.Sprintf("dispatch: duplicate method %q", method))
	}
	t.entries[method] = entry{kind: k, mutates: mutates, begin: begin}
}

// Methods returns all method names in sorted order.
func (t *Table) Methods() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether method exists.
func (t *Table) Has(method string) bool {
	_, ok := t.entries[method]
	return ok
}

// Mutates reports whether method changes engine or diagnostic state.
func (t *Table) Mutates(method string) bool {
	return t.entries[method].mutates
}

// Begin validates a call and, for engine methods, submits it without
// blocking. The returned Pending must be waited on.
func (t *Table) Begin(method string, params json.RawMessage) (Pending, error) {
	e, ok := t.entries[method]
	if !ok {
		return Pending{}, fmt.Errorf("%w: %q", ErrMethodNotFound, method)
	}
	return e.begin(t, t.reg.Load(), params)
}

// Dispatch runs one call to completion.
func (t *Table) Dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	p, err := t.Begin(method, params)
	if err != nil {
		return nil, err
	}
	return p.Wait(ctx)
}

// Pending is a call that has passed validation. Read calls are already
// resolved; engine calls hold a handle on the submitted command.
type Pending struct {
	value     any
	submitted bool
	handle    engine.Handle
	finish    func(engine.Result) (any, error)
	timeout   time.Duration
}

// Wait returns the call's result. Engine calls wait at most the table's
// call timeout, then fail with Unavailable.
func (p Pending) Wait(ctx context.Context) (any, error) {
	if !p.submitted {
		return p.value, nil
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	res, err := p.handle.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if p.finish == nil {
		return nil, nil
	}
	return p.finish(res)
}

// plan is the outcome of validating an engine call.
type plan struct {
	cmd    engine.Command
	finish func(engine.Result) (any, error) // nil for calls answering null
}

func read[A any](fn func(t *Table, snap *registry.Snapshot, args A) (any, error)) beginFunc {
	return func(t *Table, snap *registry.Snapshot, params json.RawMessage) (Pending, error) {
		var args A
		if err := decodeParams(params, &args); err != nil {
			return Pending{}, err
		}
		v, err := fn(t, snap, args)
		if err != nil {
			return Pending{}, err
		}
		return Pending{value: v}, nil
	}
}

func command[A any](fn func(t *Table, snap *registry.Snapshot, args A) (plan, error)) beginFunc {
	return func(t *Table, snap *registry.Snapshot, params json.RawMessage) (Pending, error) {
		var args A
		if err := decodeParams(params, &args); err != nil {
			return Pending{}, err
		}
		p, err := fn(t, snap, args)
		if err != nil {
			return Pending{}, err
		}
		h, err := t.eng.Submit(p.cmd)
		if err != nil {
			return Pending{}, err
		}
		return Pending{submitted: true, handle: h, finish: p.finish, timeout: t.timeout}, nil
	}
}

// decodeParams decodes a keyword object into args. Absent or null params
// decode as an empty object.
func decodeParams(params json.RawMessage, args any) error {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	if trimmed[0] != '{' {
		return control.InvalidArgument("params must be an object of named arguments")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(args); err != nil {
		return &control.Error{Kind: control.KindInvalidArgument, Message: "invalid params", Err: err}
	}
	if dec.More() {
		return control.InvalidArgument("trailing data after params")
	}
	return nil
}

// required returns *v, or InvalidArgument naming the missing argument.
func required[T any](v *T, name string) (T, error) {
	if v == nil {
		var zero T
		return zero, control.InvalidArgument("missing required argument %q", name)
	}
	return *v, nil
}

func inUnitRange(v float64, name string) error {
	if !(v >= 0 && v <= 1) {
		return control.InvalidArgument("%s must be in [0, 1], got %v", name, v)
	}
	return nil
}
