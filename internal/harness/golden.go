package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cadence/internal/ir"
)

// canonical converts a trace event to the map form accepted by
// ir.MarshalCanonical. Times and durations are rendered as strings so the
// golden files stay readable.
func (e TraceEvent) canonical() ir.Object {
	m := ir.Object{
		"generation":       e.Generation,
		"scheduled":        formatTime(e.Scheduled),
		"probe_at":         formatTime(e.ProbeAt),
		"probe_success":    e.ProbeSuccess,
		"fired_at":         formatTime(e.FiredAt),
		"level":            e.Level,
		"execution_drift":  e.ExecutionDrift.String(),
		"scheduling_drift": e.SchedulingDrift.String(),
		"failures":         e.Failures,
		"alerts":           e.Alerts,
		"counters": ir.Object{
			"total":              e.Counters.Total,
			"execution_failures": e.Counters.ExecutionFailures,
			"timer_failures":     e.Counters.TimerFailures,
			"unhealthy":          e.Counters.Unhealthy,
		},
		"next_scheduled": formatTime(e.NextScheduled),
	}
	if e.ProbeFault {
		m["probe_fault"] = true
	}
	if e.TimerFault {
		m["timer_fault"] = true
	}
	if e.Replays > 0 {
		m["replays"] = e.Replays
	}
	return m
}

// MarshalTrace renders a trace as one canonical JSON object per line.
func MarshalTrace(trace []TraceEvent) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range trace {
		line, err := ir.MarshalCanonical(e.canonical())
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
