package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/sushid/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent // nil when the trace is irrelevant
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v", event.Seq, event.Call, event.Args)
			if event.Error != "" {
				fmt.Fprintf(&buf, " -> %s", event.Error)
			}
			fmt.Fprintln(&buf)
		}
	}

	return buf.String()
}

// AssertionContext gives assertions access to the journal and to the
// running host.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Session string

	// Call makes an untraced call against the host.
	Call func(method string, args map[string]any) (any, error)
}

// assertTraceContains checks for a call whose args contain the expected
// args.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	want, err := normalize(a.Args)
	if err != nil {
		return fmt.Errorf("trace_contains args: %w", err)
	}
	for _, event := range trace {
		if event.Call != a.Call {
			continue
		}
		if want == nil || matchValue(want, orEmpty(event.Args)) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("call %s with args %v", a.Call, a.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func orEmpty(v any) any {
	if v == nil {
		return map[string]any{}
	}
	return v
}

// assertTraceOrder checks that the first occurrences of the calls appear
// in the given order. Other calls may intervene.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Call]; !seen {
			positions[event.Call] = i + 1
		}
	}

	for _, call := range a.Calls {
		if positions[call] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all calls present: %v", a.Calls),
				Actual:   fmt.Sprintf("missing call: %s", call),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Calls); i++ {
		prev, curr := a.Calls[i-1], a.Calls[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("calls in order: %v", a.Calls),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Call == a.Call {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Call),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState makes a call after the flow and matches its result.
func assertFinalState(actx *AssertionContext, a Assertion) error {
	v, err := actx.Call(a.Call, a.Args)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s to succeed", a.Call),
			Actual:   fmt.Sprintf("error: %v", err),
		}
	}

	got, err := normalize(v)
	if err != nil {
		return fmt.Errorf("final_state result: %w", err)
	}
	want, err := normalize(a.Expect)
	if err != nil {
		return fmt.Errorf("final_state expect: %w", err)
	}
	if !matchValue(want, got) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v", a.Call, want),
			Actual:   fmt.Sprintf("%s = %v", a.Call, got),
		}
	}
	return nil
}

// assertJournal counts journal entries for the session, narrowed to one
// method when the assertion names a call.
func assertJournal(actx *AssertionContext, a Assertion) error {
	calls, err := actx.Store.ReadCalls(actx.Ctx, store.CallFilter{SessionID: actx.Session, Method: a.Call})
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	if len(calls) != a.Count {
		what := "journal entries"
		if a.Call != "" {
			what = "journal entries for " + a.Call
		}
		methods := make([]string, len(calls))
		for i, c := range calls {
			methods[i] = c.Method + ":" + c.Outcome
		}
		return &AssertionError{
			Type:     AssertJournal,
			Expected: fmt.Sprintf("%d %s", a.Count, what),
			Actual:   fmt.Sprintf("%d %v", len(calls), methods),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result and
// returns the messages of the failed ones. actx may be nil when no
// assertion needs the host or the journal.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			if actx == nil || actx.Call == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a running host", i)
			} else {
				err = assertFinalState(actx, a)
			}
		case AssertJournal:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: journal requires a journal", i)
			} else {
				err = assertJournal(actx, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
