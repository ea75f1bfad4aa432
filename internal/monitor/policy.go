package monitor

import (
	"errors"
	"fmt"
	"time"
)

// ContinuationPolicy selects how the next generation's scheduled time is
// derived from the current one.
type ContinuationPolicy string

const (
	// ContinueFromActual schedules the next generation at the actual timer
	// fire time. Drift is bounded per cycle; phase is reset every cycle.
	ContinueFromActual ContinuationPolicy = "actual"

	// ContinueFromIntended keeps the original ScheduledTime + k*Period grid
	// and picks the first tick at or after the fire time. Phase is stable;
	// late cycles are skipped rather than compressed.
	ContinueFromIntended ContinuationPolicy = "intended"
)

// ParseContinuationPolicy parses a policy name. The empty string selects
// ContinueFromActual.
func ParseContinuationPolicy(s string) (ContinuationPolicy, error) {
	switch ContinuationPolicy(s) {
	case "", ContinueFromActual:
		return ContinueFromActual, nil
	case ContinueFromIntended:
		return ContinueFromIntended, nil
	default:
		return "", fmt.Errorf("unknown continuation policy %q (want %q or %q)", s, ContinueFromActual, ContinueFromIntended)
	}
}

// AlertPolicy selects which failure categories produce an alert line.
// Counting is not affected: every failure is counted.
type AlertPolicy struct {
	// Execution alerts on execution drift and probe faults.
	Execution bool
	// Scheduling alerts on scheduling drift and timer faults.
	Scheduling bool
	// Unhealthy alerts when the probe reports the target down.
	Unhealthy bool
}

// DefaultAlertPolicy alerts on drift and faults but not on an unhealthy
// target.
func DefaultAlertPolicy() AlertPolicy {
	return AlertPolicy{Execution: true, Scheduling: true}
}

func (a AlertPolicy) allows(f Failure) bool {
	switch {
	case f.execution():
		return a.Execution
	case f.timer():
		return a.Scheduling
	default:
		return false
	}
}

// Policy parameterizes every chain run by a Driver.
type Policy struct {
	Period       time.Duration
	Tolerance    time.Duration
	Alerts       AlertPolicy
	Continuation ContinuationPolicy
}

// DefaultPolicy returns a one-minute cadence with three seconds of
// scheduling tolerance.
func DefaultPolicy() Policy {
	return Policy{
		Period:       60 * time.Second,
		Tolerance:    3 * time.Second,
		Alerts:       DefaultAlertPolicy(),
		Continuation: ContinueFromActual,
	}
}

// Validate checks the policy.
func (p Policy) Validate() error {
	var errs []error
	if p.Period <= 0 {
		errs = append(errs, fmt.Errorf("period must be positive, got %s", p.Period))
	}
	if p.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("tolerance must not be negative, got %s", p.Tolerance))
	}
	if _, err := ParseContinuationPolicy(string(p.Continuation)); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	return nil
}
