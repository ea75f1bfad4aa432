package harness

import (
	"time"

	"github.com/roach88/cadence/internal/monitor"
)

// TraceEvent summarizes one generation.
type TraceEvent struct {
	Generation      int64            `json:"generation"`
	Scheduled       time.Time        `json:"scheduled"`
	ProbeAt         time.Time        `json:"probe_at"`
	ProbeSuccess    bool             `json:"probe_success"`
	ProbeFault      bool             `json:"probe_fault,omitempty"`
	FiredAt         time.Time        `json:"fired_at"`
	TimerFault      bool             `json:"timer_fault,omitempty"`
	Level           string           `json:"level"`
	ExecutionDrift  time.Duration    `json:"execution_drift"`
	SchedulingDrift time.Duration    `json:"scheduling_drift"`
	Failures        []string         `json:"failures"`
	Alerts          []string         `json:"alerts"`
	Counters        monitor.Counters `json:"counters"`
	NextScheduled   time.Time        `json:"next_scheduled"`
	Replays         int              `json:"replays,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace has one event per generation.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Next is the input the chain would continue with.
	Next monitor.GenerationInput `json:"next"`

	// Alerts is the number of alert lines logged across all generations.
	Alerts int `json:"alerts"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func newTraceEvent(out monitor.Outcome, alerts []string, replays int) TraceEvent {
	failures := make([]string, len(out.Failures))
	for i, f := range out.Failures {
		failures[i] = string(f)
	}
	if alerts == nil {
		alerts = []string{}
	}
	return TraceEvent{
		Generation:      out.Input.Generation,
		Scheduled:       out.Input.ScheduledTime,
		ProbeAt:         out.Probe.ExecutionTimestamp,
		ProbeSuccess:    out.Probe.Success,
		ProbeFault:      out.ProbeErr != nil,
		FiredAt:         out.FiredAt,
		TimerFault:      out.TimerErr != nil,
		Level:           out.Decision.Level.String(),
		ExecutionDrift:  out.Decision.ExecutionDrift,
		SchedulingDrift: out.Decision.SchedulingDrift,
		Failures:        failures,
		Alerts:          alerts,
		Counters:        out.Next.Counters,
		NextScheduled:   out.Next.ScheduledTime,
		Replays:         replays,
	}
}
