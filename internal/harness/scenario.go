package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cadence/internal/drift"
	"github.com/roach88/cadence/internal/monitor"
)

// Scenario scripts a chain of generations and the expected result.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Target is the probed target. Default: "scenario.invalid:80".
	Target string `yaml:"target,omitempty"`

	// Start is generation 0's scheduled time.
	Start time.Time `yaml:"start"`

	// Policy overrides monitor.DefaultPolicy field by field.
	Policy PolicySpec `yaml:"policy,omitempty"`

	// Generations scripts each generation in order.
	Generations []GenerationStep `yaml:"generations"`

	// Expect is checked after the last generation.
	Expect *Expectation `yaml:"expect,omitempty"`
}

// PolicySpec is the YAML form of monitor.Policy. Unset fields keep the
// default.
type PolicySpec struct {
	Period       time.Duration  `yaml:"period,omitempty"`
	Tolerance    *time.Duration `yaml:"tolerance,omitempty"`
	Continuation string         `yaml:"continuation,omitempty"`
	Alerts       *AlertSpec     `yaml:"alerts,omitempty"`
}

// AlertSpec is the YAML form of monitor.AlertPolicy.
type AlertSpec struct {
	Execution  bool `yaml:"execution"`
	Scheduling bool `yaml:"scheduling"`
	Unhealthy  bool `yaml:"unhealthy"`
}

// GenerationStep scripts one generation.
type GenerationStep struct {
	ProbeLatency   time.Duration `yaml:"probe_latency,omitempty"`
	ProbeFault     string        `yaml:"probe_fault,omitempty"`
	ProbeUnhealthy bool          `yaml:"probe_unhealthy,omitempty"`
	ProbePanic     string        `yaml:"probe_panic,omitempty"`
	TimerDelay     time.Duration `yaml:"timer_delay,omitempty"`
	TimerFault     string        `yaml:"timer_fault,omitempty"`
	TimerPanic     string        `yaml:"timer_panic,omitempty"`
	Replays        int           `yaml:"replays,omitempty"`

	Expect *StepExpectation `yaml:"expect,omitempty"`
}

// StepExpectation is checked after one generation.
type StepExpectation struct {
	// Level is the drift level name ("none", "execution_drift",
	// "scheduling_drift").
	Level string `yaml:"level,omitempty"`

	// Failures, when set, must equal the generation's failures in order.
	// Use an empty list to require none.
	Failures *[]string `yaml:"failures,omitempty"`

	// Alerts, when set, is the exact number of alert lines.
	Alerts *int `yaml:"alerts,omitempty"`
}

// Expectation is checked after the last generation.
type Expectation struct {
	// Counters are the counters carried into the next generation.
	Counters *CounterSpec `yaml:"counters,omitempty"`

	// Alerts, when set, is the total number of alert lines.
	Alerts *int `yaml:"alerts,omitempty"`

	// NextScheduled is the next generation's scheduled time.
	NextScheduled *time.Time `yaml:"next_scheduled,omitempty"`
}

// CounterSpec is the YAML form of monitor.Counters.
type CounterSpec struct {
	Total             int64 `yaml:"total"`
	ExecutionFailures int64 `yaml:"execution_failures"`
	TimerFailures     int64 `yaml:"timer_failures"`
	Unhealthy         int64 `yaml:"unhealthy"`
}

// Counters converts c to monitor.Counters.
func (c CounterSpec) Counters() monitor.Counters {
	return monitor.Counters{
		Total:             c.Total,
		ExecutionFailures: c.ExecutionFailures,
		TimerFailures:     c.TimerFailures,
		Unhealthy:         c.Unhealthy,
	}
}

// defaultTarget is used when a scenario does not name one.
const defaultTarget = "scenario.invalid:80"

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
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

// MonitorPolicy resolves the scenario policy against the defaults.
func (s *Scenario) MonitorPolicy() (monitor.Policy, error) {
	p := monitor.DefaultPolicy()
	if s.Policy.Period != 0 {
		p.Period = s.Policy.Period
	}
	if s.Policy.Tolerance != nil {
		p.Tolerance = *s.Policy.Tolerance
	}
	if s.Policy.Continuation != "" {
		c, err := monitor.ParseContinuationPolicy(s.Policy.Continuation)
		if err != nil {
			return monitor.Policy{}, err
		}
		p.Continuation = c
	}
	if a := s.Policy.Alerts; a != nil {
		p.Alerts = monitor.AlertPolicy{
			Execution:  a.Execution,
			Scheduling: a.Scheduling,
			Unhealthy:  a.Unhealthy,
		}
	}
	return p, p.Validate()
}

func (s *Scenario) target() string {
	if s.Target == "" {
		return defaultTarget
	}
	return s.Target
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if s.Start.IsZero() {
		return errors.New("start is required")
	}
	if len(s.Generations) == 0 {
		return errors.New("generations list is required and must be non-empty")
	}
	if _, err := s.MonitorPolicy(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	for i, g := range s.Generations {
		if err := validateStep(g); err != nil {
			return fmt.Errorf("generations[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(g GenerationStep) error {
	if g.ProbeLatency < 0 {
		return errors.New("probe_latency must not be negative")
	}
	if g.TimerDelay < 0 {
		return errors.New("timer_delay must not be negative")
	}
	if g.Replays < 0 {
		return errors.New("replays must not be negative")
	}
	if g.ProbeFault != "" && g.ProbePanic != "" {
		return errors.New("probe_fault and probe_panic are exclusive")
	}
	if g.TimerFault != "" && g.TimerPanic != "" {
		return errors.New("timer_fault and timer_panic are exclusive")
	}
	if g.Expect != nil && g.Expect.Level != "" {
		if _, err := parseLevel(g.Expect.Level); err != nil {
			return fmt.Errorf("expect: %w", err)
		}
	}
	return nil
}

func parseLevel(s string) (drift.Level, error) {
	for _, l := range []drift.Level{drift.LevelNone, drift.LevelExecutionDrift, drift.LevelSchedulingDrift} {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown level %q", s)
}
