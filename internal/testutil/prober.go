package testutil

import (
	"context"
	"sync"
	"time"
)

// Advancer is implemented by VirtualClock and ManualClock.
type Advancer interface {
	Advance(d time.Duration)
}

// ProbeStep scripts one probe call.
type ProbeStep struct {
	// Latency is added to the clock before the call returns.
	Latency time.Duration
	// Down makes the probe report the target unhealthy.
	Down bool
	// Err makes the call fail with a probe fault.
	Err error
	// Panic makes the call panic with this value.
	Panic any
}

// ScriptedProber returns scripted results in order, then healthy
// zero-latency results once the script is exhausted.
//
// It implements engine.Prober.
//
// Thread-safety: ScriptedProber is safe for concurrent use via internal mutex.
type ScriptedProber struct {
	mu      sync.Mutex
	clock   Advancer
	steps   []ProbeStep
	targets []string
}

// NewScriptedProber creates a prober that advances clock by each step's
// latency. clock may be nil.
func NewScriptedProber(clock Advancer, steps ...ProbeStep) *ScriptedProber {
	return &ScriptedProber{clock: clock, steps: steps}
}

// Probe runs the next scripted step.
func (p *ScriptedProber) Probe(ctx context.Context, target string) (bool, error) {
	p.mu.Lock()
	var step ProbeStep
	if len(p.steps) > 0 {
		step = p.steps[0]
		p.steps = p.steps[1:]
	}
	p.targets = append(p.targets, target)
	p.mu.Unlock()

	if step.Panic != nil {
		panic(step.Panic)
	}
	if step.Latency > 0 && p.clock != nil {
		p.clock.Advance(step.Latency)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if step.Err != nil {
		return false, step.Err
	}
	return !step.Down, nil
}

// Calls returns the number of Probe calls so far.
func (p *ScriptedProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.targets)
}

// Targets returns the targets probed, in call order.
func (p *ScriptedProber) Targets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.targets...)
}
