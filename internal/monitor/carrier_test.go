package monitor

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestCarrier_Next(t *testing.T) {
	in := GenerationInput{
		Target:        "svc",
		ScheduledTime: t0,
		Generation:    7,
		Counters:      Counters{Total: 7, ExecutionFailures: 2},
	}
	delta := Counters{Total: 1, TimerFailures: 1, Unhealthy: 1}

	tests := []struct {
		name   string
		policy ContinuationPolicy
		fired  time.Time
		want   time.Time
	}{
		{"actual on time", ContinueFromActual, t0.Add(time.Minute), t0.Add(time.Minute)},
		{"actual late", ContinueFromActual, t0.Add(65 * time.Second), t0.Add(65 * time.Second)},
		{"actual before schedule is clamped", ContinueFromActual, t0.Add(-time.Second), t0},
		{"intended on tick", ContinueFromIntended, t0.Add(time.Minute), t0.Add(time.Minute)},
		{"intended early", ContinueFromIntended, t0.Add(30 * time.Second), t0.Add(time.Minute)},
		{"intended late skips to next tick", ContinueFromIntended, t0.Add(65 * time.Second), t0.Add(2 * time.Minute)},
		{"intended far behind", ContinueFromIntended, t0.Add(301 * time.Second), t0.Add(6 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Carrier{Period: time.Minute, Policy: tt.policy}
			next := c.Next(in, tt.fired, delta)

			assert.Equal(t, tt.want, next.ScheduledTime)
			assert.Equal(t, int64(8), next.Generation)
			assert.Equal(t, "svc", next.Target)
			assert.Equal(t, Counters{Total: 8, ExecutionFailures: 2, TimerFailures: 1, Unhealthy: 1}, next.Counters)
		})
	}
}

func TestCarrier_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500

	properties := gopter.NewProperties(parameters)
	const period = int64(time.Minute)

	monotone := func(policy ContinuationPolicy) func(firedOffset int64, failures int64) bool {
		return func(firedOffset int64, failures int64) bool {
			in := GenerationInput{Target: "svc", ScheduledTime: t0, Counters: Counters{Total: 3, ExecutionFailures: 1}}
			fired := t0.Add(time.Duration(firedOffset))
			delta := Counters{Total: 1, ExecutionFailures: failures, TimerFailures: failures}
			next := Carrier{Period: time.Minute, Policy: policy}.Next(in, fired, delta)

			return !next.ScheduledTime.Before(fired) &&
				!next.ScheduledTime.Before(in.ScheduledTime) &&
				next.Counters.Total > in.Counters.Total &&
				next.Counters.ExecutionFailures >= in.Counters.ExecutionFailures &&
				next.Counters.TimerFailures >= in.Counters.TimerFailures
		}
	}

	properties.Property("actual: next is never before fire time", prop.ForAll(
		monotone(ContinueFromActual),
		gen.Int64Range(-period, 20*period),
		gen.Int64Range(0, 1),
	))

	properties.Property("intended: next is never before fire time", prop.ForAll(
		monotone(ContinueFromIntended),
		gen.Int64Range(-period, 20*period),
		gen.Int64Range(0, 1),
	))

	properties.Property("intended: next stays on the grid", prop.ForAll(
		func(firedOffset int64) bool {
			in := GenerationInput{Target: "svc", ScheduledTime: t0}
			next := Carrier{Period: time.Minute, Policy: ContinueFromIntended}.Next(in, t0.Add(time.Duration(firedOffset)), Counters{})
			return next.ScheduledTime.Sub(t0)%time.Minute == 0
		},
		gen.Int64Range(0, 20*period),
	))

	properties.TestingRun(t)
}
