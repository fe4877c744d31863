package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strconv"
	"time"

	"github.com/roach88/sushid/internal/config"
	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/dispatch"
	"github.com/roach88/sushid/internal/host"
	"github.com/roach88/sushid/internal/store"
	"github.com/roach88/sushid/internal/testutil"
)

// remote is the journal remote address of harness sessions.
const remote = "harness"

// Harness executes one scenario against a private host and journal.
type Harness struct {
	host    *host.Host
	store   *store.Store
	clock   *testutil.StepClock
	session string
	seq     int64
}

// Run executes a scenario and returns the result.
//
// Each run builds a fresh host and an in-memory journal. Execution order:
//  1. setup calls, which must succeed
//  2. flow calls, checked against their expect clauses
//  3. assertions
//
// An error is returned only when the scenario could not be executed; failed
// expectations are reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	cfg := config.Default()
	if scenario.Config != "" {
		loaded, err := config.Load(scenario.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	h, err := host.Build(cfg, host.Options{
		CallTimeout:      -1,
		TimingStatistics: true,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build host: %w", err)
	}
	h.Engine.SetReady(true)

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	hr := &Harness{
		host:    h,
		store:   st,
		clock:   testutil.NewStepClock(time.Second),
		session: scenario.Name,
	}

	if err := st.WriteSession(ctx, store.Session{ID: hr.session, Remote: remote, OpenedAt: hr.clock.Now()}); err != nil {
		return nil, fmt.Errorf("failed to open journal session: %w", err)
	}

	result := NewResult()
	if err := hr.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := hr.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	if err := st.CloseSession(ctx, hr.session, hr.clock.Now()); err != nil {
		return nil, fmt.Errorf("failed to close journal session: %w", err)
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		Session: hr.session,
		Call: func(method string, args map[string]any) (any, error) {
			v, _, err := hr.call(ctx, method, args)
			return v, err
		},
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func (h *Harness) executeSetup(ctx context.Context, setup []Step, result *Result) error {
	for i, step := range setup {
		ev, err := h.execute(ctx, step, result)
		if err != nil {
			return fmt.Errorf("setup[%d] %s: %w", i, step.Call, err)
		}
		if ev.Error != "" {
			return fmt.Errorf("setup[%d] %s failed with %s", i, step.Call, ev.Error)
		}
	}
	return nil
}

func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		ev, err := h.execute(ctx, step, result)
		if err != nil {
			return fmt.Errorf("flow[%d] %s: %w", i, step.Call, err)
		}
		if msg := checkExpect(step.Expect, ev); msg != "" {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Call, msg))
		}
	}
	return nil
}

// execute makes one traced call and journals it when the method mutates.
// The returned error is a harness failure, not a call failure.
func (h *Harness) execute(ctx context.Context, step Step, result *Result) (TraceEvent, error) {
	v, raw, callErr := h.call(ctx, step.Call, step.Args)

	h.seq++
	ev := TraceEvent{Seq: h.seq, Call: step.Call}
	if len(step.Args) > 0 {
		args, err := normalize(step.Args)
		if err != nil {
			return ev, err
		}
		ev.Args = args
	}
	if callErr != nil {
		ev.Error = errorKind(callErr)
	} else {
		res, err := normalize(v)
		if err != nil {
			return ev, err
		}
		ev.Result = res
	}
	result.AddTrace(ev)

	if h.host.Table.Has(step.Call) && h.host.Table.Mutates(step.Call) {
		c := store.Call{
			SessionID:  h.session,
			SessionSeq: ev.Seq,
			RequestID:  strconv.FormatInt(ev.Seq, 10),
			Method:     step.Call,
			Params:     raw,
			Outcome:    store.OutcomeOK,
			RecordedAt: h.clock.Now(),
		}
		if callErr != nil {
			c.Outcome = ev.Error
			c.Message = callErr.Error()
		}
		if _, err := h.store.WriteCall(ctx, c); err != nil {
			return ev, fmt.Errorf("failed to journal call: %w", err)
		}
		result.Journaled++
	}
	return ev, nil
}

// call submits one call and renders a single block so that engine calls
// complete before Wait.
func (h *Harness) call(ctx context.Context, method string, args map[string]any) (any, json.RawMessage, error) {
	var raw json.RawMessage
	if len(args) > 0 {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, nil, control.InvalidArgument("args are not JSON: %v", err)
		}
		raw = b
	}

	p, err := h.host.Table.Begin(method, raw)
	if err != nil {
		return nil, raw, err
	}
	h.host.Step(1)
	v, err := p.Wait(ctx)
	return v, raw, err
}

func errorKind(err error) string {
	if errors.Is(err, dispatch.ErrMethodNotFound) {
		return MethodNotFound
	}
	return string(control.KindOf(err))
}

func checkExpect(e *Expect, ev TraceEvent) string {
	switch {
	case e == nil:
		if ev.Error != "" {
			return fmt.Sprintf("expected success, got error %s", ev.Error)
		}
	case e.Error != "":
		if ev.Error != e.Error {
			return fmt.Sprintf("expected error %s, got %s", e.Error, describe(ev))
		}
	default:
		if ev.Error != "" {
			return fmt.Sprintf("expected result %v, got error %s", e.Result, ev.Error)
		}
		want, err := normalize(e.Result)
		if err != nil {
			return fmt.Sprintf("expected result is not JSON: %v", err)
		}
		if !matchValue(want, ev.Result) {
			return fmt.Sprintf("expected result %v, got %v", want, ev.Result)
		}
	}
	return ""
}

func describe(ev TraceEvent) string {
	if ev.Error != "" {
		return "error " + ev.Error
	}
	return fmt.Sprintf("result %v", ev.Result)
}

// normalize round-trips v through JSON so that values decoded from YAML
// and values returned by handlers compare alike.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// matchValue reports whether actual satisfies expected. Objects match as
// subsets, recursively; arrays must have equal length.
func matchValue(expected, actual any) bool {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, ev := range exp {
			av, ok := act[k]
			if !ok || !matchValue(ev, av) {
				return false
			}
		}
		return true
	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchValue(exp[i], act[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(expected, actual)
	}
}
