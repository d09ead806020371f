package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lockdown/internal/host"
)

// Scenario defines a scripted run against the composite value manager.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Capabilities are the host flags of the run. Nil means host.Default().
	Capabilities *host.Capabilities `yaml:"capabilities,omitempty"`

	// Types maps names to type descriptors. Only composite types can be
	// attached.
	Types map[string]any `yaml:"types,omitempty"`

	// Values maps names to plain data. Mappings become object values and
	// sequences become lists.
	Values map[string]any `yaml:"values"`

	// Steps run in order against the named values.
	Steps []Step `yaml:"steps"`

	// Assertions validate the outcome after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one operation on a named value.
type Step struct {
	// Op is one of attach, detach, get, set, delete, insert.
	Op string `yaml:"op"`

	// Value names the value operated on.
	Value string `yaml:"value"`

	// Type names the type to attach or detach.
	Type string `yaml:"type,omitempty"`

	// Verified skips the satisfaction check of an attach.
	Verified bool `yaml:"verified,omitempty"`

	// Key is the key or index of an accessor step.
	Key any `yaml:"key,omitempty"`

	// Data is the plain value written by set and insert.
	Data any `yaml:"data,omitempty"`

	// Ref names a scenario value written by set and insert instead of Data.
	Ref string `yaml:"ref,omitempty"`

	// As binds the result of a get under a new value name.
	As string `yaml:"as,omitempty"`

	// Expect validates the step. If nil, the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step. Unset fields are not
// checked.
type Expect struct {
	OK       *bool  `yaml:"ok,omitempty"`
	Error    string `yaml:"error,omitempty"`
	Tolerant *bool  `yaml:"tolerant,omitempty"`
	Value    any    `yaml:"value,omitempty"`
	Count    *int   `yaml:"count,omitempty"`
}

// Assertion validates the final state of a run.
type Assertion struct {
	// Type is final_value or outcome_count.
	Type string `yaml:"type"`

	// Value names the value checked by final_value.
	Value string `yaml:"value,omitempty"`

	// Expect is the plain content expected by final_value.
	Expect any `yaml:"expect,omitempty"`

	// Outcome and Count are used by outcome_count.
	Outcome string `yaml:"outcome,omitempty"`
	Count   int    `yaml:"count,omitempty"`
}

// Step operations.
const (
	OpAttach = "attach"
	OpDetach = "detach"
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
	OpInsert = "insert"
)

// Assertion type constants.
const (
	AssertFinalValue   = "final_value"
	AssertOutcomeCount = "outcome_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML held in memory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "step:" for "steps:".
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

// validateScenario checks that required fields are present and that steps
// only name declared types and values.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Values) == 0 {
		return fmt.Errorf("values map is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	known := make(map[string]bool, len(s.Values))
	for name := range s.Values {
		known[name] = true
	}
	for i, step := range s.Steps {
		if err := validateStep(s, known, step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.As != "" {
			known[step.As] = true
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, known); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(s *Scenario, known map[string]bool, step Step) error {
	if step.Value == "" {
		return fmt.Errorf("value is required")
	}
	if !known[step.Value] {
		return fmt.Errorf("unknown value %q", step.Value)
	}

	switch step.Op {
	case OpAttach, OpDetach:
		if step.Type == "" {
			return fmt.Errorf("type is required for %s", step.Op)
		}
		if _, ok := s.Types[step.Type]; !ok {
			return fmt.Errorf("unknown type %q", step.Type)
		}
	case OpGet, OpDelete:
		if step.Key == nil {
			return fmt.Errorf("key is required for %s", step.Op)
		}
	case OpSet, OpInsert:
		if step.Key == nil {
			return fmt.Errorf("key is required for %s", step.Op)
		}
		if step.Ref != "" && step.Data != nil {
			return fmt.Errorf("data and ref are mutually exclusive")
		}
		if step.Ref != "" && !known[step.Ref] {
			return fmt.Errorf("unknown ref %q", step.Ref)
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if step.As != "" && step.Op != OpGet {
		return fmt.Errorf("as is only valid on get")
	}
	if e := step.Expect; e != nil && e.Count != nil && step.Type == "" {
		return fmt.Errorf("expect.count needs a type")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, known map[string]bool) error {
	switch a.Type {
	case AssertFinalValue:
		if a.Value == "" {
			return fmt.Errorf("assertions[%d]: value is required for final_value", index)
		}
		if !known[a.Value] {
			return fmt.Errorf("assertions[%d]: unknown value %q", index, a.Value)
		}
	case AssertOutcomeCount:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for outcome_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for outcome_count", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
