package harness

import (
	"fmt"
	"log/slog"

	"github.com/roach88/cadence/internal/monitor"
)

// Run executes a scenario and returns the result.
//
// Each generation runs live against a simulated context, then is replayed
// from its recorded history as many times as the step asks. The successor
// of one generation is the input of the next, exactly as a host would
// carry it.
//
// The returned error is reserved for scenarios that cannot be executed at
// all; failed expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	policy, err := scenario.MonitorPolicy()
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}

	alerts := &alertCapture{}
	sink := &reportSink{}
	driver, err := monitor.NewDriver(policy,
		monitor.WithCounterSink(sink),
		monitor.WithLogger(slog.New(alerts)),
	)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	in := monitor.GenerationInput{
		Target:        scenario.target(),
		ScheduledTime: scenario.Start.UTC(),
	}

	for i, step := range scenario.Generations {
		ctx := newSimContext(scenario.Name, step, in.ScheduledTime)
		before := alerts.count()

		out, err := driver.Run(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("generation %d: %w", i, err)
		}
		logged := alerts.since(before)

		for r := 1; r <= step.Replays; r++ {
			ctx.rewind()
			replayed, err := driver.Run(ctx, in)
			if err != nil {
				result.AddError(fmt.Sprintf("generation %d replay %d: %v", i, r, err))
				continue
			}
			if !sameInput(replayed.Next, out.Next) {
				result.AddError(fmt.Sprintf("generation %d replay %d: continued as %s, live pass continued as %s",
					i, r, describe(replayed.Next), describe(out.Next)))
			}
			if n := alerts.count(); n != before+len(logged) {
				result.AddError(fmt.Sprintf("generation %d replay %d: repeated %d alert line(s)", i, r, n-before-len(logged)))
			}
			if ctx.IsReplaying() {
				result.AddError(fmt.Sprintf("generation %d replay %d: %d recorded step(s) not consumed", i, r, len(ctx.history)-ctx.cursor))
			}
		}

		event := newTraceEvent(out, logged, step.Replays)
		result.Trace = append(result.Trace, event)
		for _, msg := range checkStep(i, step.Expect, event) {
			result.AddError(msg)
		}

		if got := sink.count(); got != i+1 {
			result.AddError(fmt.Sprintf("generation %d: counter sink saw %d report(s), want %d", i, got, i+1))
		}
		in = out.Next
	}

	result.Next = in
	result.Alerts = alerts.count()
	for _, msg := range checkExpectation(scenario.Expect, result) {
		result.AddError(msg)
	}
	return result, nil
}
