package harness

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/cadence/internal/monitor"
)

// Recorded step kinds of a simulated history.
const (
	kindProbe      = "probe"
	kindProbeFault = "probe_fault"
	kindProbePanic = "probe_panic"
	kindTimer      = "timer"
	kindTimerFault = "timer_fault"
	kindTimerPanic = "timer_panic"
	kindEffect     = "effect"
)

type record struct {
	kind    string
	at      time.Time
	success bool
	name    string
	message string
}

// simContext is a history-recording monitor.ExecutionContext on a
// simulated clock. The first pass runs live from the step script; rewind
// makes the next pass replay the recorded history.
type simContext struct {
	chainID string
	step    GenerationStep
	started time.Time

	history []record
	cursor  int
	now     time.Time

	committed *monitor.GenerationInput
	fault     error
}

var (
	_ monitor.ExecutionContext = (*simContext)(nil)
	_ monitor.EffectRecorder   = (*simContext)(nil)
)

func newSimContext(chainID string, step GenerationStep, start time.Time) *simContext {
	return &simContext{
		chainID: chainID,
		step:    step,
		started: start,
		now:     start,
	}
}

// rewind prepares a replay pass over the recorded history.
func (c *simContext) rewind() {
	c.cursor = 0
	c.now = c.started
	c.fault = nil
}

func (c *simContext) ChainID() string { return c.chainID }

func (c *simContext) IsReplaying() bool {
	return c.cursor < len(c.history)
}

func (c *simContext) CurrentLogicalTime() time.Time {
	return c.now
}

func (c *simContext) InvokeProbe(target string) (monitor.ProbeResult, error) {
	if c.IsReplaying() {
		r, err := c.consume(kindProbe, kindProbeFault, kindProbePanic)
		if err != nil {
			return monitor.ProbeResult{}, err
		}
		return c.probeResult(r)
	}

	s := c.step
	switch {
	case s.ProbePanic != "":
		return c.probeResult(c.append(record{kind: kindProbePanic, at: c.now, message: s.ProbePanic}))
	case s.ProbeFault != "":
		c.now = c.now.Add(s.ProbeLatency)
		return c.probeResult(c.append(record{kind: kindProbeFault, at: c.now, message: s.ProbeFault}))
	default:
		c.now = c.now.Add(s.ProbeLatency)
		return c.probeResult(c.append(record{kind: kindProbe, at: c.now, success: !s.ProbeUnhealthy}))
	}
}

func (c *simContext) probeResult(r record) (monitor.ProbeResult, error) {
	switch r.kind {
	case kindProbePanic:
		panic(r.message)
	case kindProbeFault:
		return monitor.ProbeResult{}, errors.New(r.message)
	default:
		return monitor.ProbeResult{ExecutionTimestamp: r.at, Success: r.success}, nil
	}
}

func (c *simContext) AwaitTimer(fireAt time.Time) (time.Time, error) {
	if c.IsReplaying() {
		r, err := c.consume(kindTimer, kindTimerFault, kindTimerPanic)
		if err != nil {
			return time.Time{}, err
		}
		return c.timerResult(r)
	}

	s := c.step
	switch {
	case s.TimerPanic != "":
		return c.timerResult(c.append(record{kind: kindTimerPanic, at: c.now, message: s.TimerPanic}))
	case s.TimerFault != "":
		return c.timerResult(c.append(record{kind: kindTimerFault, at: c.now, message: s.TimerFault}))
	default:
		fired := fireAt.Add(s.TimerDelay)
		if fired.Before(c.now) {
			fired = c.now
		}
		c.now = fired
		return c.timerResult(c.append(record{kind: kindTimer, at: fired}))
	}
}

func (c *simContext) timerResult(r record) (time.Time, error) {
	switch r.kind {
	case kindTimerPanic:
		panic(r.message)
	case kindTimerFault:
		return time.Time{}, errors.New(r.message)
	default:
		return r.at, nil
	}
}

func (c *simContext) RecordEffect(name string) (bool, error) {
	if c.IsReplaying() {
		r, err := c.consume(kindEffect)
		if err != nil {
			return false, err
		}
		if r.name != name {
			return false, c.latch(fmt.Errorf("non-determinism: recorded effect %q, replay performed %q", r.name, name))
		}
		return false, nil
	}
	c.append(record{kind: kindEffect, at: c.now, name: name})
	return true, nil
}

func (c *simContext) ContinueAsNew(next monitor.GenerationInput) error {
	if c.fault != nil {
		return c.fault
	}
	if c.committed == nil {
		c.committed = &next
		return nil
	}
	if !sameInput(*c.committed, next) {
		return c.latch(fmt.Errorf("non-determinism: generation %d continued as %s, replay requested %s",
			c.committed.Generation-1, describe(*c.committed), describe(next)))
	}
	return nil
}

func (c *simContext) append(r record) record {
	c.history = append(c.history, r)
	c.cursor = len(c.history)
	return r
}

func (c *simContext) consume(kinds ...string) (record, error) {
	r := c.history[c.cursor]
	for _, k := range kinds {
		if r.kind == k {
			c.cursor++
			c.now = r.at
			return r, nil
		}
	}
	return record{}, c.latch(fmt.Errorf("non-determinism: history has %s at position %d, replay expected one of %v", r.kind, c.cursor, kinds))
}

func (c *simContext) latch(err error) error {
	if c.fault == nil {
		c.fault = err
	}
	return err
}

func sameInput(a, b monitor.GenerationInput) bool {
	return a.Target == b.Target &&
		a.Generation == b.Generation &&
		a.ScheduledTime.Equal(b.ScheduledTime) &&
		a.Counters == b.Counters
}

func describe(in monitor.GenerationInput) string {
	return fmt.Sprintf("{generation %d at %s counters %+v}", in.Generation, formatTime(in.ScheduledTime), in.Counters)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
