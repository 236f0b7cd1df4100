package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted session.
type Scenario struct {
	// Name uniquely identifies this scenario (and its golden file).
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Steps are the action invocations, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the transcript and final registry.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one action invocation, or a wait for an earlier async one.
type Step struct {
	// Invoke is the action name. Required unless Await is set.
	Invoke string `yaml:"invoke,omitempty"`

	// Args is the argument object. Omit for argument-less actions.
	Args map[string]any `yaml:"args,omitempty"`

	// Async schedules the action without waiting for it.
	Async bool `yaml:"async,omitempty"`

	// ID names an async step so a later step can await it.
	ID string `yaml:"id,omitempty"`

	// Await waits for the async step with this id to finish. A step that
	// awaits invokes nothing.
	Await string `yaml:"await,omitempty"`

	// AwaitTask delays this step until a task of that name is live.
	AwaitTask string `yaml:"await_task,omitempty"`

	// ExpectError, if set, requires the step to fail with an error whose
	// message contains this text.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Event names the event (event_count, event_data).
	Event string `yaml:"event,omitempty"`

	// Count is the expected number of envelopes (event_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected relative order of events (event_order).
	Events []string `yaml:"events,omitempty"`

	// Data is the expected data of the last envelope for Event (event_data).
	Data any `yaml:"data,omitempty"`

	// Tables is the expected final registry (registry).
	Tables []string `yaml:"tables,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount = "event_count"
	AssertEventOrder = "event_order"
	AssertEventData  = "event_data"
	AssertRegistry   = "registry"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	ids := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, step, ids); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks one step. ids maps each async id declared so far to
// whether it can still be awaited.
func validateStep(i int, step Step, ids map[string]bool) error {
	if step.Await != "" {
		if step.Invoke != "" || step.Args != nil || step.Async || step.ID != "" || step.AwaitTask != "" || step.ExpectError != "" {
			return fmt.Errorf("steps[%d]: await cannot be combined with other fields", i)
		}
		awaitable, declared := ids[step.Await]
		if !declared {
			return fmt.Errorf("steps[%d]: await %q does not name an earlier async step", i, step.Await)
		}
		if !awaitable {
			return fmt.Errorf("steps[%d]: %q is already awaited", i, step.Await)
		}
		ids[step.Await] = false
		return nil
	}

	if step.Invoke == "" {
		return fmt.Errorf("steps[%d]: invoke is required", i)
	}
	if step.Async && step.ExpectError != "" {
		return fmt.Errorf("steps[%d]: expect_error cannot be combined with async", i)
	}
	if step.ID != "" {
		if !step.Async {
			return fmt.Errorf("steps[%d]: id requires async", i)
		}
		if _, dup := ids[step.ID]; dup {
			return fmt.Errorf("steps[%d]: duplicate id %q", i, step.ID)
		}
		ids[step.ID] = true
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertEventData:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_data", index)
		}
	case AssertRegistry:
		// An empty tables list asserts an empty registry
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
