package monitor

// probeOutcome is the result of the probe step. err is non-nil for a probe
// fault; result is still usable in that case.
type probeOutcome struct {
	result ProbeResult
	err    error
}

// invokeProbe calls the host probe and folds a fault into an unsuccessful
// result stamped with the current logical time.
func invokeProbe(ctx ExecutionContext, target string) probeOutcome {
	res, err := ctx.InvokeProbe(target)
	if err != nil {
		return probeOutcome{
			result: ProbeResult{ExecutionTimestamp: ctx.CurrentLogicalTime(), Success: false},
			err:    err,
		}
	}
	if res.ExecutionTimestamp.IsZero() {
		res.ExecutionTimestamp = ctx.CurrentLogicalTime()
	}
	return probeOutcome{result: res}
}
