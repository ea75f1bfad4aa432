package harness

import (
	"fmt"
	"slices"
)

// checkStep compares one generation against its expectation.
func checkStep(index int, expect *StepExpectation, got TraceEvent) []string {
	if expect == nil {
		return nil
	}
	var errs []string
	if expect.Level != "" && expect.Level != got.Level {
		errs = append(errs, fmt.Sprintf("generation %d: level = %s, want %s", index, got.Level, expect.Level))
	}
	if expect.Failures != nil && !slices.Equal(*expect.Failures, got.Failures) {
		errs = append(errs, fmt.Sprintf("generation %d: failures = %v, want %v", index, got.Failures, *expect.Failures))
	}
	if expect.Alerts != nil && *expect.Alerts != len(got.Alerts) {
		errs = append(errs, fmt.Sprintf("generation %d: %d alert(s) %v, want %d", index, len(got.Alerts), got.Alerts, *expect.Alerts))
	}
	return errs
}

// checkExpectation compares the end state of a scenario.
func checkExpectation(expect *Expectation, r *Result) []string {
	if expect == nil {
		return nil
	}
	var errs []string
	if expect.Counters != nil {
		if want := expect.Counters.Counters(); want != r.Next.Counters {
			errs = append(errs, fmt.Sprintf("counters = %+v, want %+v", r.Next.Counters, want))
		}
	}
	if expect.Alerts != nil && *expect.Alerts != r.Alerts {
		errs = append(errs, fmt.Sprintf("alerts = %d, want %d", r.Alerts, *expect.Alerts))
	}
	if expect.NextScheduled != nil && !expect.NextScheduled.Equal(r.Next.ScheduledTime) {
		errs = append(errs, fmt.Sprintf("next scheduled = %s, want %s",
			formatTime(r.Next.ScheduledTime), formatTime(*expect.NextScheduled)))
	}
	return errs
}
