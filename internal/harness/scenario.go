package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/weft/internal/apps/counter"
)

// Scenario defines a conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Policy is "immediate" (default) or "deferred".
	Policy string `yaml:"policy,omitempty"`

	// Start is the initial count.
	Start int `yaml:"start,omitempty"`

	// Init lists the messages the counter's Init command emits.
	Init []string `yaml:"init,omitempty"`

	// MaxSteps overrides the per-flow quota. Nil keeps the default.
	MaxSteps *int `yaml:"max_steps,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action. Exactly one field is set.
type Step struct {
	// Dispatch is a counter message token, e.g. "increment" or "add:5".
	Dispatch string `yaml:"dispatch,omitempty"`

	// Frames runs that many frames of the deferred scheduler.
	Frames int `yaml:"frames,omitempty"`
}

// Assertion validates the outcome of a run.
type Assertion struct {
	Type string `yaml:"type"`

	// Value is the expected number (cycle_count, counter, reconcile_count,
	// style_count, init_count).
	Value *int `yaml:"value,omitempty"`

	// Text is the expected substring (view_contains).
	Text string `yaml:"text,omitempty"`

	// Messages is the expected completion order (cycle_order).
	Messages []string `yaml:"messages,omitempty"`

	// Code is the expected runtime error code (runtime_error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertCycleCount     = "cycle_count"
	AssertCounter        = "counter"
	AssertReconcileCount = "reconcile_count"
	AssertStyleCount     = "style_count"
	AssertInitCount      = "init_count"
	AssertViewContains   = "view_contains"
	AssertCycleOrder     = "cycle_order"
	AssertRuntimeError   = "runtime_error"
)

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML. Unknown fields are
// errors.
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

// deferred reports whether the scenario runs under the deferred policy.
func (s *Scenario) deferred() bool {
	return s.Policy == "deferred"
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch s.Policy {
	case "", "immediate", "deferred":
	default:
		return fmt.Errorf("policy must be immediate or deferred, got %q", s.Policy)
	}
	if s.MaxSteps != nil && *s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, token := range s.Init {
		if _, err := counter.ParseMsg(token); err != nil {
			return fmt.Errorf("init[%d]: %w", i, err)
		}
	}

	for i, step := range s.Steps {
		switch {
		case step.Dispatch != "" && step.Frames != 0:
			return fmt.Errorf("steps[%d]: set either dispatch or frames, not both", i)
		case step.Dispatch != "":
			if _, err := counter.ParseMsg(step.Dispatch); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		case step.Frames > 0:
			if !s.deferred() {
				return fmt.Errorf("steps[%d]: frames requires the deferred policy", i)
			}
		default:
			return fmt.Errorf("steps[%d]: dispatch or a positive frames count is required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertCycleCount, AssertCounter, AssertReconcileCount, AssertStyleCount, AssertInitCount:
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for %s", index, a.Type)
		}
	case AssertViewContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for view_contains", index)
		}
	case AssertCycleOrder:
		if len(a.Messages) == 0 {
			return fmt.Errorf("assertions[%d]: messages list is required for cycle_order", index)
		}
		for _, token := range a.Messages {
			if _, err := counter.ParseMsg(token); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertRuntimeError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for runtime_error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
