package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sushid/internal/control"
)

// Scenario is one harness run: setup calls, the flow under test and the
// assertions evaluated afterwards.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Config is an engine configuration file. Empty selects the built-in
	// default topology.
	Config string `yaml:"config,omitempty"`

	// Setup calls must succeed and may not carry expect clauses.
	Setup []Step `yaml:"setup,omitempty"`

	Flow []Step `yaml:"flow"`

	Assertions []Assertion `yaml:"assertions"`
}

// Step is one call.
type Step struct {
	Call string         `yaml:"call"`
	Args map[string]any `yaml:"args,omitempty"`

	// Expect checks the outcome. Nil means the call must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is either an expected result or an expected error kind.
type Expect struct {
	Result any

	// HasResult distinguishes "result: null" from an absent result.
	HasResult bool

	// Error is a control error kind, or MethodNotFound.
	Error string
}

// UnmarshalYAML records whether result was present, which a plain field
// cannot express for null results.
func (e *Expect) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expect must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "result":
			if err := val.Decode(&e.Result); err != nil {
				return err
			}
			e.HasResult = true
		case "error":
			if err := val.Decode(&e.Error); err != nil {
				return err
			}
		default:
			return fmt.Errorf("line %d: field %s not found in expect", key.Line, key.Value)
		}
	}
	return nil
}

// Assertion validates the trace, the final engine state or the journal.
type Assertion struct {
	Type string `yaml:"type"`

	// Call is the method (trace_contains, trace_count, final_state, journal).
	Call string `yaml:"call,omitempty"`

	// Args is a subset match for trace_contains and the call arguments for
	// final_state.
	Args map[string]any `yaml:"args,omitempty"`

	// Calls is the expected order for trace_order.
	Calls []string `yaml:"calls,omitempty"`

	// Count is used by trace_count and journal.
	Count int `yaml:"count,omitempty"`

	// Expect is the final_state result.
	Expect any `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertJournal       = "journal"
)

// MethodNotFound is the expect error for calls to unknown methods. It is
// not a control kind: the gateway answers it with a protocol error.
const MethodNotFound = "MethodNotFound"

// LoadScenario reads a scenario file. Unknown fields are rejected and a
// relative config path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) {
		scenario.Config = filepath.Join(filepath.Dir(path), scenario.Config)
	}
	if scenario.Config != "" {
		if _, err := os.Stat(scenario.Config); err != nil {
			return nil, fmt.Errorf("invalid scenario: config file: %w", err)
		}
	}

	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if step.Call == "" {
			return fmt.Errorf("setup[%d]: call is required", i)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}

	for i, step := range s.Flow {
		if step.Call == "" {
			return fmt.Errorf("flow[%d]: call is required", i)
		}
		if err := validateExpect(step.Expect); err != nil {
			return fmt.Errorf("flow[%d].expect: %w", i, err)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateExpect(e *Expect) error {
	if e == nil {
		return nil
	}
	switch {
	case e.HasResult && e.Error != "":
		return fmt.Errorf("result and error are mutually exclusive")
	case !e.HasResult && e.Error == "":
		return fmt.Errorf("result or error is required")
	case e.Error != "" && !validErrorKind(e.Error):
		return fmt.Errorf("unknown error kind %q", e.Error)
	}
	return nil
}

func validErrorKind(k string) bool {
	switch control.Kind(k) {
	case control.KindNotFound, control.KindInvalidArgument, control.KindUnavailable, control.KindInternal:
		return true
	}
	return k == MethodNotFound
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for final_state", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertJournal:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
