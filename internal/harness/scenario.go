package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is one end-to-end weaving test.
type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Fixtures    []string    `yaml:"fixtures"`
	Config      Overrides   `yaml:"config"`
	Flow        []Step      `yaml:"flow"`
	Assertions  []Assertion `yaml:"assertions"`
}

// Overrides replace fields of the default configuration.
type Overrides struct {
	LoggableType string `yaml:"loggable_type"`
	HookModule   string `yaml:"hook_module"`
	MaxArity     *int   `yaml:"max_arity"`
	Exclude      string `yaml:"exclude"`
}

// Step is one flow entry: exactly one of New or Invoke is set.
type Step struct {
	// New constructs an instance with the no-argument constructor. Later
	// instance calls on the class use the newest instance.
	New string `yaml:"new"`

	// Invoke is owner.method, with owner an internal class name.
	Invoke string  `yaml:"invoke"`
	Desc   string  `yaml:"desc"`
	Static bool    `yaml:"static"`
	Args   []any   `yaml:"args"`
	Expect *Expect `yaml:"expect"`
}

// Target splits Invoke into owner and method.
func (s Step) Target() (owner, method string) {
	i := strings.LastIndexByte(s.Invoke, '.')
	if i < 0 {
		return "", s.Invoke
	}
	return s.Invoke[:i], s.Invoke[i+1:]
}

// Expect describes how an invocation ends.
type Expect struct {
	// Return is the String.valueOf rendering of the returned value.
	Return *string `yaml:"return"`

	// Throws is the internal name of the exception class.
	Throws string `yaml:"throws"`
}

// Assertion types.
const (
	AssertLogContains     = "log_contains"
	AssertLogOrder        = "log_order"
	AssertLogCount        = "log_count"
	AssertWrapCount       = "wrap_count"
	AssertInfoContains    = "info_contains"
	AssertMember          = "member"
	AssertInjected        = "injected"
	AssertWarningContains = "warning_contains"
)

// Member outcomes.
const (
	OutcomeInjected  = "injected"
	OutcomeSkipped   = "skipped"
	OutcomeExcluded  = "excluded"
	OutcomeUnmatched = "unmatched"
)

// Assertion is a check over the trace or the transform results.
type Assertion struct {
	Type    string   `yaml:"type"`
	Name    string   `yaml:"name,omitempty"`
	Names   []string `yaml:"names,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	Count   int      `yaml:"count,omitempty"`
	Class   string   `yaml:"class,omitempty"`
	Member  string   `yaml:"member,omitempty"`
	Outcome string   `yaml:"outcome,omitempty"`
	Text    string   `yaml:"text,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
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
	if len(s.Fixtures) == 0 {
		return fmt.Errorf("fixtures list is required and must be non-empty")
	}
	for i, name := range s.Fixtures {
		if _, err := fixture(name); err != nil {
			return fmt.Errorf("fixtures[%d]: %w", i, err)
		}
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		switch {
		case step.New != "" && step.Invoke != "":
			return fmt.Errorf("flow[%d]: new and invoke are mutually exclusive", i)
		case step.New != "":
			if step.Desc != "" || step.Args != nil || step.Expect != nil || step.Static {
				return fmt.Errorf("flow[%d]: new takes no desc, args, static or expect", i)
			}
		case step.Invoke != "":
			if owner, _ := step.Target(); owner == "" {
				return fmt.Errorf("flow[%d]: invoke must be owner.method", i)
			}
			if step.Desc == "" {
				return fmt.Errorf("flow[%d]: desc is required", i)
			}
			if step.Expect != nil && step.Expect.Return != nil && step.Expect.Throws != "" {
				return fmt.Errorf("flow[%d].expect: return and throws are mutually exclusive", i)
			}
		default:
			return fmt.Errorf("flow[%d]: new or invoke is required", i)
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
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertLogContains:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for log_contains", index)
		}
	case AssertLogOrder:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for log_order", index)
		}
	case AssertLogCount:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for log_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for log_count", index)
		}
	case AssertWrapCount, AssertInjected:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertInfoContains, AssertWarningContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertMember:
		if a.Class == "" || a.Member == "" {
			return fmt.Errorf("assertions[%d]: class and member are required for member", index)
		}
		switch a.Outcome {
		case OutcomeInjected, OutcomeSkipped, OutcomeExcluded, OutcomeUnmatched:
		default:
			return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
