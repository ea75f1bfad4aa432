package monitor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/cadence/internal/drift"
)

// Effect names recorded by the Guard. They are part of the durable history
// and must not be renamed.
const (
	EffectAlert  = "alert"
	EffectReport = "report"
)

// Driver runs one generation of a monitoring chain.
//
// A Driver is stateless between generations and safe for concurrent use by
// many chains; everything a generation needs travels in GenerationInput.
type Driver struct {
	policy  Policy
	carrier Carrier
	sink    CounterSink
	logger  *slog.Logger
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithCounterSink sets the aggregate counter sink. Reports reach the sink
// once per generation, on the live pass.
func WithCounterSink(s CounterSink) DriverOption {
	return func(d *Driver) {
		d.sink = s
	}
}

// WithLogger sets the logger used for alert and summary lines.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDriver creates a Driver for policy.
func NewDriver(policy Policy, opts ...DriverOption) (*Driver, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.Continuation == "" {
		policy.Continuation = ContinueFromActual
	}
	d := &Driver{
		policy:  policy,
		carrier: Carrier{Period: policy.Period, Policy: policy.Continuation},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Policy returns the policy the driver was built with.
func (d *Driver) Policy() Policy {
	return d.policy
}

// Outcome describes one finished generation. It is deterministic for a
// given history: a replayed pass yields the same Outcome as the live one.
type Outcome struct {
	Input    GenerationInput
	Probe    ProbeResult
	ProbeErr error
	FiredAt  time.Time
	TimerErr error
	Decision drift.Decision
	Failures []Failure
	Delta    Counters
	Next     GenerationInput
	Phase    Phase
}

// Run executes one generation: probe, wait, evaluate, gated effects, then
// continue as new.
//
// Probe and timer faults, including panics raised by the context, are
// recovered and counted. The continuation request is issued on every path
// once the input has been validated; the returned error is the one reported
// by ContinueAsNew, which belongs to the host.
func (d *Driver) Run(ctx ExecutionContext, in GenerationInput) (out Outcome, err error) {
	if err := in.Validate(); err != nil {
		return Outcome{Input: in}, err
	}

	out = Outcome{Input: in, Phase: PhaseStart}
	defer func() {
		if r := recover(); r != nil {
			d.recoverFault(ctx, &out, r)
		}
		err = d.finish(ctx, &out)
	}()

	probe := invokeProbe(ctx, in.Target)
	out.Probe, out.ProbeErr = probe.result, probe.err
	out.Phase = PhaseProbeInvoked

	fireAt := wakeAt(in.ScheduledTime, d.policy.Period, ctx.CurrentLogicalTime())
	timer := awaitTimer(ctx, fireAt)
	out.FiredAt, out.TimerErr = timer.firedAt, timer.err
	out.Phase = PhaseTimerAwaited

	d.decide(&out)
	return out, nil
}

// recoverFault turns a panic into the fault of the step that was running.
func (d *Driver) recoverFault(ctx ExecutionContext, out *Outcome, r any) {
	fault := fmt.Errorf("panic: %v", r)
	now := safeLogicalTime(ctx, out.Input.ScheduledTime)

	switch {
	case out.Phase < PhaseProbeInvoked:
		out.Probe = ProbeResult{ExecutionTimestamp: now, Success: false}
		out.ProbeErr = fault
		// The timer was never reached. The generation resumes now.
		out.FiredAt = now
		out.Phase = PhaseTimerAwaited
	case out.Phase < PhaseTimerAwaited:
		out.FiredAt = now
		out.TimerErr = fault
		out.Phase = PhaseTimerAwaited
	default:
		d.logger.Error("panic after timer, continuing",
			"target", out.Input.Target,
			"generation", out.Input.Generation,
			"error", fault,
		)
	}
}

// decide evaluates drift and classifies failures. Pure over out.
func (d *Driver) decide(out *Outcome) {
	in := out.Input
	out.Decision = drift.Evaluate(in.ScheduledTime, out.Probe.ExecutionTimestamp, out.FiredAt, d.policy.Period, d.policy.Tolerance)

	var failures []Failure
	if out.ProbeErr != nil {
		failures = append(failures, FailureProbeFault)
	} else if out.Decision.Level == drift.LevelExecutionDrift {
		failures = append(failures, FailureExecutionDrift)
	}
	if out.TimerErr != nil {
		failures = append(failures, FailureTimerFault)
	} else if out.Decision.Level == drift.LevelSchedulingDrift {
		failures = append(failures, FailureScheduling)
	}
	out.Failures = failures
	out.Delta = deltaOf(failures, out.Probe.Success)
	out.Phase = PhaseDecisionComputed
}

// deltaOf moves each counter by at most one.
func deltaOf(failures []Failure, success bool) Counters {
	delta := Counters{Total: 1}
	for _, f := range failures {
		if f.execution() {
			delta.ExecutionFailures = 1
		}
		if f.timer() {
			delta.TimerFailures = 1
		}
	}
	if !success {
		delta.Unhealthy = 1
	}
	return delta
}

// finish runs the gated effects and requests the successor generation.
func (d *Driver) finish(ctx ExecutionContext, out *Outcome) error {
	if out.Phase < PhaseDecisionComputed {
		d.decide(out)
	}

	guard := NewGuard(ctx, d.logger)
	chainID := chainIDOf(ctx)
	in := out.Input

	if alerts := d.alerts(out); len(alerts) > 0 {
		guard.Do(EffectAlert, func() {
			for _, category := range alerts {
				d.logger.Warn("drift alert",
					"chain_id", chainID,
					"target", in.Target,
					"generation", in.Generation,
					"category", category,
					"execution_drift", out.Decision.ExecutionDrift,
					"scheduling_drift", out.Decision.SchedulingDrift,
					"magnitude", out.Decision.Magnitude(),
				)
			}
		})
	}

	guard.Do(EffectReport, func() {
		d.logger.Debug("generation complete",
			"chain_id", chainID,
			"target", in.Target,
			"generation", in.Generation,
			"level", out.Decision.Level.String(),
			"probe_success", out.Probe.Success,
			"fired_at", out.FiredAt,
		)
		if d.sink != nil {
			d.sink.Record(Report{
				ChainID:      chainID,
				Target:       in.Target,
				Generation:   in.Generation,
				Decision:     out.Decision,
				ProbeSuccess: out.Probe.Success,
				Failures:     append([]Failure(nil), out.Failures...),
				Delta:        out.Delta,
			})
		}
	})

	out.Next = d.carrier.Next(in, out.FiredAt, out.Delta)
	out.Phase = PhaseContinuationRequested
	if err := ctx.ContinueAsNew(out.Next); err != nil {
		return fmt.Errorf("continue as new (generation %d): %w", in.Generation, err)
	}
	out.Phase = PhaseTerminal
	return nil
}

// alerts lists the categories the alert policy lets through.
func (d *Driver) alerts(out *Outcome) []string {
	var categories []string
	for _, f := range out.Failures {
		if d.policy.Alerts.allows(f) {
			categories = append(categories, string(f))
		}
	}
	if !out.Probe.Success && out.ProbeErr == nil && d.policy.Alerts.Unhealthy {
		categories = append(categories, "unhealthy")
	}
	return categories
}

func safeLogicalTime(ctx ExecutionContext, fallback time.Time) (t time.Time) {
	defer func() {
		if recover() != nil {
			t = fallback
		}
	}()
	t = ctx.CurrentLogicalTime()
	if t.IsZero() {
		t = fallback
	}
	return t
}
