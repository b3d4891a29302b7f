package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a circuit test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Circuit is the path to a .cue file or directory of circuits.
	// Relative paths are resolved against the scenario file location.
	Circuit string `yaml:"circuit"`

	// Component is the circuit name to simulate.
	Component string `yaml:"component"`

	// Steps drive the component, one time step per entry and repetition.
	Steps []Step `yaml:"steps"`

	// Assertions validate the whole trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one entry of the stimulus.
type Step struct {
	// Inputs maps input port names to bit strings, e.g. {A: "1"}.
	// Ports left out read as all zero.
	Inputs map[string]string `yaml:"inputs,omitempty"`

	// Expect maps output port names to expected bit strings.
	// Checked on the last repetition.
	Expect map[string]string `yaml:"expect,omitempty"`

	// Repeat is how many consecutive steps use these inputs. 0 means 1.
	Repeat int `yaml:"repeat,omitempty"`
}

// Assertion validates the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "output_sequence": Output takes Values, one per step
	// - "node_pin": Pin holds Value at Step
	// - "failure": evaluation fails at Step with Code
	// - "step_count": exactly Count steps succeeded
	Type string `yaml:"type"`

	Output string   `yaml:"output,omitempty"`
	Values []string `yaml:"values,omitempty"`
	Step   int      `yaml:"step,omitempty"`
	Pin    string   `yaml:"pin,omitempty"`
	Value  string   `yaml:"value,omitempty"`
	Code   string   `yaml:"code,omitempty"`
	Count  int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertOutputSequence = "output_sequence"
	AssertNodePin        = "node_pin"
	AssertFailure        = "failure"
	AssertStepCount      = "step_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the circuit path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(scenario.Circuit) && basePath != "" {
		scenario.Circuit = filepath.Join(basePath, scenario.Circuit)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. The circuit path is left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "expects:" vs "expect:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
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
	if s.Circuit == "" {
		return fmt.Errorf("circuit is required")
	}
	if s.Component == "" {
		return fmt.Errorf("component is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Repeat < 0 {
			return fmt.Errorf("steps[%d]: repeat must be >= 0, got %d", i, step.Repeat)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertOutputSequence:
			if a.Output == "" || len(a.Values) == 0 {
				return fmt.Errorf("assertions[%d]: output_sequence needs output and values", i)
			}
		case AssertNodePin:
			if a.Pin == "" || a.Value == "" {
				return fmt.Errorf("assertions[%d]: node_pin needs pin and value", i)
			}
		case AssertFailure:
			if a.Code == "" {
				return fmt.Errorf("assertions[%d]: failure needs code", i)
			}
		case AssertStepCount:
		default:
			return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
	}
	return nil
}

// StepCount returns the number of time steps the scenario drives.
func (s *Scenario) StepCount() int {
	n := 0
	for _, step := range s.Steps {
		n += max(step.Repeat, 1)
	}
	return n
}
