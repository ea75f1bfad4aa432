package drift

import (
	"fmt"
	"time"
)

// Level is the alert classification of a single generation.
type Level int

const (
	// LevelNone means the generation ran within its cadence.
	LevelNone Level = iota
	// LevelExecutionDrift means the probe took at least a full period.
	LevelExecutionDrift
	// LevelSchedulingDrift means the timer fired later than tolerated.
	LevelSchedulingDrift
)

// String returns the wire name of the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelExecutionDrift:
		return "execution_drift"
	case LevelSchedulingDrift:
		return "scheduling_drift"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Decision is the outcome of Evaluate. It is derived per generation and
// never persisted.
type Decision struct {
	ExecutionDrift  time.Duration
	SchedulingDrift time.Duration
	Level           Level
}

// Alerting reports whether the decision is anything other than LevelNone.
func (d Decision) Alerting() bool {
	return d.Level != LevelNone
}

// Magnitude returns the drift that caused the alert, or zero.
func (d Decision) Magnitude() time.Duration {
	switch d.Level {
	case LevelExecutionDrift:
		return d.ExecutionDrift
	case LevelSchedulingDrift:
		return d.SchedulingDrift
	default:
		return 0
	}
}

// Evaluate computes both drifts and classifies them.
//
// Execution drift takes precedence over scheduling drift. A negative
// scheduling drift (timer fired early) is reported as is.
func Evaluate(scheduled, probeAt, firedAt time.Time, period, tolerance time.Duration) Decision {
	d := Decision{
		ExecutionDrift:  probeAt.Sub(scheduled),
		SchedulingDrift: firedAt.Sub(scheduled.Add(period)),
	}

	switch {
	case d.ExecutionDrift >= period:
		d.Level = LevelExecutionDrift
	case d.SchedulingDrift > tolerance:
		d.Level = LevelSchedulingDrift
	default:
		d.Level = LevelNone
	}
	return d
}
