package monitor

import "time"

// timerOutcome is the result of the timer step. On a fault firedAt is the
// logical time at which the fault was observed.
type timerOutcome struct {
	firedAt time.Time
	err     error
}

// wakeAt returns scheduled+period, or now when that moment has already
// passed. This is the "period minus elapsed, clamped to zero" wait.
func wakeAt(scheduled time.Time, period time.Duration, now time.Time) time.Time {
	due := scheduled.Add(period)
	if now.After(due) {
		return now
	}
	return due
}

func awaitTimer(ctx ExecutionContext, fireAt time.Time) timerOutcome {
	fired, err := ctx.AwaitTimer(fireAt)
	if err != nil {
		return timerOutcome{firedAt: ctx.CurrentLogicalTime(), err: err}
	}
	if fired.IsZero() {
		fired = ctx.CurrentLogicalTime()
	}
	return timerOutcome{firedAt: fired}
}
