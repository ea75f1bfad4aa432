package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cadence/internal/drift"
)

func newTestDriver(t *testing.T, policy Policy) (*Driver, *recordingSink, *logBuffer) {
	t.Helper()
	logger, logs := newTestLogger()
	sink := &recordingSink{}
	d, err := NewDriver(policy, WithCounterSink(sink), WithLogger(logger))
	require.NoError(t, err)
	return d, sink, logs
}

func TestNewDriver_RejectsInvalidPolicy(t *testing.T) {
	_, err := NewDriver(Policy{Period: 0, Tolerance: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "period must be positive")
	assert.Contains(t, err.Error(), "tolerance must not be negative")
}

func TestNewDriver_EmptyContinuationDefaultsToActual(t *testing.T) {
	d, err := NewDriver(Policy{Period: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, ContinueFromActual, d.Policy().Continuation)
}

func TestDriver_SteadyState(t *testing.T) {
	d, sink, logs := newTestDriver(t, DefaultPolicy())
	ctx := newFakeContext(t0)
	ctx.probeLatency = 5 * time.Second

	out, err := d.Run(ctx, testInput())
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, out.Decision.ExecutionDrift)
	assert.Equal(t, time.Duration(0), out.Decision.SchedulingDrift)
	assert.Equal(t, drift.LevelNone, out.Decision.Level)
	assert.Empty(t, out.Failures)
	assert.Equal(t, Counters{Total: 1}, out.Delta)
	assert.Equal(t, PhaseTerminal, out.Phase)

	require.Len(t, ctx.continued, 1)
	next := ctx.continued[0]
	assert.Equal(t, t0.Add(60*time.Second), next.ScheduledTime)
	assert.Equal(t, int64(1), next.Generation)
	assert.Equal(t, Counters{Total: 1}, next.Counters)
	assert.Equal(t, "db.internal:5432", next.Target)

	assert.Equal(t, 1, ctx.probeCalls)
	assert.Equal(t, []time.Time{t0.Add(60 * time.Second)}, ctx.timerAsked)
	assert.Equal(t, 1, sink.len())
	assert.Equal(t, 0, logs.count("drift alert"))
	assert.Equal(t, 1, logs.count("generation complete"))
}

func TestDriver_SteadyStateManyGenerations(t *testing.T) {
	d, sink, logs := newTestDriver(t, DefaultPolicy())
	ctx := newFakeContext(t0)
	ctx.probeLatency = 2 * time.Second
	ctx.timerDelay = time.Second

	in := testInput()
	for i := 0; i < 50; i++ {
		out, err := d.Run(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, drift.LevelNone, out.Decision.Level, "generation %d", i)
		in = out.Next
	}

	assert.Equal(t, int64(50), in.Generation)
	assert.Equal(t, Counters{Total: 50}, in.Counters)
	assert.Equal(t, 50, sink.len())
	assert.Equal(t, 0, logs.count("drift alert"))
}

func TestDriver_ExecutionDrift(t *testing.T) {
	d, sink, logs := newTestDriver(t, DefaultPolicy())
	ctx := newFakeContext(t0)
	ctx.probeLatency = 65 * time.Second

	out, err := d.Run(ctx, testInput())
	require.NoError(t, err)

	assert.Equal(t, drift.LevelExecutionDrift, out.Decision.Level)
	assert.Equal(t, []Failure{FailureExecutionDrift}, out.Failures)
	assert.Equal(t, Counters{Total: 1, ExecutionFailures: 1}, out.Delta)

	// The wait is clamped to zero: the timer is asked to fire immediately.
	assert.Equal(t, []time.Time{t0.Add(65 * time.Second)}, ctx.timerAsked)

	require.Len(t, ctx.continued, 1)
	assert.Equal(t, t0.Add(65*time.Second), ctx.continued[0].ScheduledTime)
	assert.Equal(t, int64(1), ctx.continued[0].Counters.ExecutionFailures)

	assert.Equal(t, 1, logs.count("drift alert"))
	assert.Contains(t, logs.String(), "category=execution_drift")
	require.Equal(t, 1, sink.len())
	assert.Equal(t, drift.LevelExecutionDrift, sink.reports[0].Decision.Level)
}

func TestDriver_ProbeFault(t *testing.T) {
	d, sink, logs := newTestDriver(t, DefaultPolicy())
	ctx := newFakeContext(t0)
	ctx.probeLatency = 3 * time.Second
	ctx.probeErr = errBoom

	out, err := d.Run(ctx, testInput())
	require.NoError(t, err)

	assert.False(t, out.Probe.Success)
	assert.Equal(t, t0.Add(3*time.Second), out.Probe.ExecutionTimestamp)
	assert.ErrorIs(t, out.ProbeErr, errBoom)
	assert.Equal(t, []Failure{FailureProbeFault}, out.Failures)
	assert.Equal(t, Counters{Total: 1, ExecutionFailures: 1, Unhealthy: 1}, out.Delta)

	require.Len(t, ctx.continued, 1)
	assert.Equal(t, t0.Add(60*time.Second), ctx.continued[0].ScheduledTime)
	assert.Equal(t, 1, logs.count("drift alert"))
	assert.Contains(t, logs.String(), "category=probe_fault")
	assert.Equal(t, 1, sink.len())
}

func TestDriver_UnhealthyTarget(t *testing.T) {
	t.Run("not alerted by default", func(t *testing.T) {
		d, _, logs := newTestDriver(t, DefaultPolicy())
		ctx := newFakeContext(t0)
		ctx.probeFails = true

		out, err := d.Run(ctx, testInput())
		require.NoError(t, err)
		assert.Empty(t, out.Failures)
		assert.Equal(t, Counters{Total: 1, Unhealthy: 1}, out.Delta)
		assert.Equal(t, 0, logs.count("drift alert"))
	})

	t.Run("alerted when enabled", func(t *testing.T) {
		policy := DefaultPolicy()
		policy.Alerts.Unhealthy = true
		d, _, logs := newTestDriver(t, policy)
		ctx := newFakeContext(t0)
		ctx.probeFails = true

		_, err := d.Run(ctx, testInput())
		require.NoError(t, err)
		assert.Equal(t, 1, logs.count("drift alert"))
		assert.Contains(t, logs.String(), "category=unhealthy")
	})
}

func TestDriver_SchedulingDrift(t *testing.T) {
	d, _, logs := newTestDriver(t, DefaultPolicy())
	ctx := newFakeContext(t0)
	ctx.probeLatency = 5 * time.Second
	ctx.timerDelay = 10 * time.Second

	out, err := d.Run(ctx, testInput())
	require.NoError(t, err)

	assert.Equal(t, drift.LevelSchedulingDrift, out.Decision.Level)
	assert.Equal(t, 10*time.Second, out.Decision.SchedulingDrift)
	assert.Equal(t, []Failure{FailureScheduling}, out.Failures)
	assert.Equal(t, Counters{Total: 1, TimerFailures: 1}, out.Delta)
	assert.Equal(t, t0.Add(70*time.Second), out.Next.ScheduledTime)
	assert.Equal(t, 1, logs.count("drift alert"))
}

func TestDriver_SchedulingAlertsDisabled(t *testing.T) {
	policy := DefaultPolicy()
	policy.Alerts.Scheduling = false
	d, _, logs := newTestDriver(t, policy)
	ctx := newFakeContext(t0)
	ctx.timerDelay = 10 * time.Second

	out, err := d.Run(ctx, testInput())
	require.NoError(t, err)

	// Still counted.
	assert.Equal(t, int64(1), out.Delta.TimerFailures)
	assert.Equal(t, 0, logs.count("drift alert"))
}

func TestDriver_IntendedContinuation(t *testing.T) {
	policy := DefaultPolicy()
	policy.Continuation = ContinueFromIntended
	d, _, _ := newTestDriver(t, policy)
	ctx := newFakeContext(t0)
	ctx.timerDelay = 10 * time.Second

	out, err := d.Run(ctx, testInput())
	require.NoError(t, err)
	assert.Equal(t, t0.Add(120*time.Second), out.Next.ScheduledTime)
}

func TestDriver_TimerFault(t *testing.T) {
	d, _, logs := newTestDriver(t, DefaultPolicy())
	ctx := newFakeContext(t0)
	ctx.probeLatency = 4 * time.Second
	ctx.timerErr = errBoom

	out, err := d.Run(ctx, testInput())
	require.NoError(t, err)

	assert.ErrorIs(t, out.TimerErr, errBoom)
	assert.Equal(t, t0.Add(4*time.Second), out.FiredAt)
	assert.Equal(t, []Failure{FailureTimerFault}, out.Failures)
	assert.Equal(t, Counters{Total: 1, TimerFailures: 1}, out.Delta)

	// Next generation is never scheduled before the current one.
	require.Len(t, ctx.continued, 1)
	assert.Equal(t, t0.Add(4*time.Second), ctx.continued[0].ScheduledTime)
	assert.Contains(t, logs.String(), "category=timer_fault")
}

func TestDriver_PanicInProbeStillContinues(t *testing.T) {
	d, _, _ := newTestDriver(t, DefaultPolicy())
	ctx := newFakeContext(t0)
	ctx.probePanic = "probe exploded"

	out, err := d.Run(ctx, testInput())
	require.NoError(t, err)

	assert.Equal(t, PhaseTerminal, out.Phase)
	require.Error(t, out.ProbeErr)
	assert.Contains(t, out.ProbeErr.Error(), "probe exploded")
	assert.False(t, out.Probe.Success)
	assert.Equal(t, 0, ctx.timerCalls)
	assert.Equal(t, []Failure{FailureProbeFault}, out.Failures)
	require.Len(t, ctx.continued, 1)
	assert.Equal(t, int64(1), ctx.continued[0].Counters.ExecutionFailures)
}

func TestDriver_PanicInTimerStillContinues(t *testing.T) {
	d, _, _ := newTestDriver(t, DefaultPolicy())
	ctx := newFakeContext(t0)
	ctx.probeLatency = time.Second
	ctx.timerPanic = "timer exploded"

	out, err := d.Run(ctx, testInput())
	require.NoError(t, err)

	assert.True(t, out.Probe.Success)
	require.Error(t, out.TimerErr)
	assert.Equal(t, []Failure{FailureTimerFault}, out.Failures)
	require.Len(t, ctx.continued, 1)
	assert.Equal(t, int64(1), ctx.continued[0].Counters.TimerFailures)
}

func TestDriver_ContinueAsNewErrorIsReturned(t *testing.T) {
	d, _, _ := newTestDriver(t, DefaultPolicy())
	ctx := newFakeContext(t0)
	ctx.continueErr = errBoom

	out, err := d.Run(ctx, testInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, PhaseContinuationRequested, out.Phase)
}

func TestDriver_InvalidInput(t *testing.T) {
	d, _, _ := newTestDriver(t, DefaultPolicy())
	ctx := newFakeContext(t0)

	_, err := d.Run(ctx, GenerationInput{})
	require.Error(t, err)
	assert.Equal(t, 0, ctx.probeCalls)
	assert.Empty(t, ctx.continued)
}

func TestDriver_ReplayIsIdempotent(t *testing.T) {
	d, sink, logs := newTestDriver(t, DefaultPolicy())

	// The live pass, for reference.
	live := newFakeContext(t0)
	live.probeLatency = 65 * time.Second
	want, err := d.Run(live, testInput())
	require.NoError(t, err)
	require.Equal(t, 1, sink.len())
	require.Equal(t, 1, logs.count("drift alert"))

	recorded := func(extra int) *replayContext {
		return &replayContext{
			probe:   want.Probe,
			probeAt: want.Probe.ExecutionTimestamp,
			fired:   want.FiredAt,
			extra:   extra,
		}
	}

	// Any number of replayed passes: no effects, same successor.
	for i := 0; i < 5; i++ {
		ctx := recorded(1)
		got, err := d.Run(ctx, testInput())
		require.NoError(t, err)
		require.Len(t, ctx.continued, 1)
		assert.Equal(t, want.Next, ctx.continued[0])
		assert.Equal(t, want.Decision, got.Decision)
		assert.Equal(t, want.Delta, got.Delta)
	}
	assert.Equal(t, 1, sink.len())
	assert.Equal(t, 1, logs.count("drift alert"))

	// The final pass turns live after the timer and performs the effects.
	final := recorded(0)
	_, err = d.Run(final, testInput())
	require.NoError(t, err)
	assert.Equal(t, want.Next, final.continued[0])
	assert.Equal(t, 2, sink.len())
	assert.Equal(t, 2, logs.count("drift alert"))
}

func TestDriver_EffectMarkersPreventRepeats(t *testing.T) {
	d, sink, logs := newTestDriver(t, DefaultPolicy())
	markers := map[string]bool{}
	probe := ProbeResult{ExecutionTimestamp: t0.Add(70 * time.Second), Success: true}

	for i := 0; i < 3; i++ {
		ctx := &recordingContext{
			replayContext: &replayContext{probe: probe, probeAt: probe.ExecutionTimestamp, fired: probe.ExecutionTimestamp},
			markers:       markers,
		}
		_, err := d.Run(ctx, testInput())
		require.NoError(t, err)
	}

	assert.Equal(t, 1, sink.len())
	assert.Equal(t, 1, logs.count("drift alert"))
	assert.Contains(t, logs.String(), "chain_id=chain-1")
	assert.True(t, markers[EffectAlert])
	assert.True(t, markers[EffectReport])
}

func TestDriver_EffectMarkerFailureSkipsEffect(t *testing.T) {
	d, sink, _ := newTestDriver(t, DefaultPolicy())
	ctx := &recordingContext{
		replayContext: &replayContext{probe: ProbeResult{ExecutionTimestamp: t0, Success: true}, probeAt: t0, fired: t0.Add(time.Minute)},
		markers:       map[string]bool{},
		err:           errBoom,
	}

	out, err := d.Run(ctx, testInput())
	require.NoError(t, err)
	assert.Equal(t, 0, sink.len())
	assert.Equal(t, PhaseTerminal, out.Phase)
	require.Len(t, ctx.continued, 1)
}

func TestDriver_PanicInCounterSinkStillContinues(t *testing.T) {
	logger, logs := newTestLogger()
	d, err := NewDriver(DefaultPolicy(), WithCounterSink(panicSink{}), WithLogger(logger))
	require.NoError(t, err)
	ctx := newFakeContext(t0)
	ctx.probeLatency = time.Second

	var out Outcome
	require.NotPanics(t, func() {
		out, err = d.Run(ctx, testInput())
	})
	require.NoError(t, err)

	assert.Equal(t, PhaseTerminal, out.Phase)
	require.Len(t, ctx.continued, 1)
	assert.Equal(t, t0.Add(time.Minute), ctx.continued[0].ScheduledTime)
	assert.Equal(t, 1, logs.count("effect panicked"))
	assert.Contains(t, logs.String(), "sink exploded")
}
