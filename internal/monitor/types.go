package monitor

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/cadence/internal/ir"
)

// Counters are carried from generation to generation. Every field is
// monotonically non-decreasing along a chain.
type Counters struct {
	Total             int64 `json:"total"`
	ExecutionFailures int64 `json:"execution_failures"`
	TimerFailures     int64 `json:"timer_failures"`
	Unhealthy         int64 `json:"unhealthy"`
}

// Add returns the field-wise sum of c and o.
func (c Counters) Add(o Counters) Counters {
	return Counters{
		Total:             c.Total + o.Total,
		ExecutionFailures: c.ExecutionFailures + o.ExecutionFailures,
		TimerFailures:     c.TimerFailures + o.TimerFailures,
		Unhealthy:         c.Unhealthy + o.Unhealthy,
	}
}

// GenerationInput is everything a generation needs to run. It is produced by
// the Carrier, persisted by the host and never mutated afterwards.
type GenerationInput struct {
	Target        string    `json:"target"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Generation    int64     `json:"generation"`
	Counters      Counters  `json:"counters"`
}

// Validate checks the fields a Driver relies on.
func (in GenerationInput) Validate() error {
	var errs []error
	if in.Target == "" {
		errs = append(errs, errors.New("target is required"))
	}
	if in.ScheduledTime.IsZero() {
		errs = append(errs, errors.New("scheduled time is required"))
	}
	if in.Generation < 0 {
		errs = append(errs, fmt.Errorf("generation must be >= 0, got %d", in.Generation))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid generation input: %w", err)
	}
	return nil
}

// Canonical returns the canonical-JSON form used for digests.
func (in GenerationInput) Canonical() ir.Object {
	return ir.Object{
		"target":         in.Target,
		"scheduled_time": in.ScheduledTime,
		"generation":     in.Generation,
		"counters": ir.Object{
			"total":              in.Counters.Total,
			"execution_failures": in.Counters.ExecutionFailures,
			"timer_failures":     in.Counters.TimerFailures,
			"unhealthy":          in.Counters.Unhealthy,
		},
	}
}

// ProbeResult is the uniform result of one probe invocation.
type ProbeResult struct {
	ExecutionTimestamp time.Time `json:"execution_timestamp"`
	Success            bool      `json:"success"`
}

// Phase tracks how far a generation got.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseProbeInvoked
	PhaseTimerAwaited
	PhaseDecisionComputed
	PhaseContinuationRequested
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseProbeInvoked:
		return "probe_invoked"
	case PhaseTimerAwaited:
		return "timer_awaited"
	case PhaseDecisionComputed:
		return "decision_computed"
	case PhaseContinuationRequested:
		return "continuation_requested"
	case PhaseTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}
