package monitor

// Failure categorizes what went wrong in a generation. A generation may
// record several; each counter still moves by at most one.
type Failure string

const (
	// FailureExecutionDrift: the probe took at least one full period.
	FailureExecutionDrift Failure = "execution_drift"

	// FailureScheduling: the timer fired later than the tolerance allows.
	FailureScheduling Failure = "scheduling"

	// FailureProbeFault: the probe call itself errored. Folded into an
	// unsuccessful ProbeResult.
	FailureProbeFault Failure = "probe_fault"

	// FailureTimerFault: the durable timer could not be awaited.
	FailureTimerFault Failure = "timer_fault"
)

// execution reports whether f counts against ExecutionFailures.
func (f Failure) execution() bool {
	return f == FailureExecutionDrift || f == FailureProbeFault
}

// timer reports whether f counts against TimerFailures.
func (f Failure) timer() bool {
	return f == FailureScheduling || f == FailureTimerFault
}
