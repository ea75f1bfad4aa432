package monitor

import "time"

// Carrier builds the next generation's input.
type Carrier struct {
	Period time.Duration
	Policy ContinuationPolicy
}

// Next derives the successor of in. firedAt is the actual resume time of
// the current generation and delta the counters it accrued.
//
// The returned ScheduledTime is never earlier than firedAt nor than
// in.ScheduledTime.
func (c Carrier) Next(in GenerationInput, firedAt time.Time, delta Counters) GenerationInput {
	next := firedAt
	if c.Policy == ContinueFromIntended && c.Period > 0 {
		next = nextTick(in.ScheduledTime, c.Period, firedAt)
	}
	if next.Before(firedAt) {
		next = firedAt
	}
	if next.Before(in.ScheduledTime) {
		next = in.ScheduledTime
	}

	return GenerationInput{
		Target:        in.Target,
		ScheduledTime: next,
		Generation:    in.Generation + 1,
		Counters:      in.Counters.Add(delta),
	}
}

// nextTick returns the first origin + k*period (k >= 1) that is not before t.
func nextTick(origin time.Time, period time.Duration, t time.Time) time.Time {
	tick := origin.Add(period)
	if !tick.Before(t) {
		return tick
	}
	k := t.Sub(origin) / period
	tick = origin.Add(k * period)
	if tick.Before(t) {
		tick = tick.Add(period)
	}
	return tick
}
