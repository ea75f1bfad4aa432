package monitor

import (
	"time"

	"github.com/roach88/cadence/internal/drift"
)

// ExecutionContext is what a generation needs from its host.
//
// Every method must be replay-stable: when the host re-executes a generation
// it returns the recorded results instead of performing the work again.
type ExecutionContext interface {
	// InvokeProbe checks the target once. An error is a probe fault.
	InvokeProbe(target string) (ProbeResult, error)

	// CurrentLogicalTime returns the time of the most recent recorded event.
	// It is not wall-clock time while replaying.
	CurrentLogicalTime() time.Time

	// IsReplaying reports whether the host is still fast-forwarding through
	// recorded history. It can turn false partway through a generation.
	IsReplaying() bool

	// AwaitTimer blocks until fireAt and returns the actual fire time.
	AwaitTimer(fireAt time.Time) (time.Time, error)

	// ContinueAsNew ends the generation and enqueues its successor. It must
	// be called exactly once per generation.
	ContinueAsNew(next GenerationInput) error
}

// EffectRecorder is implemented by hosts that can durably mark a gated
// effect as performed. RecordEffect returns true exactly once per name and
// generation: on the first live call.
type EffectRecorder interface {
	RecordEffect(name string) (bool, error)
}

// chainIdentifier is implemented by hosts that know the chain id.
type chainIdentifier interface {
	ChainID() string
}

// Report is handed to the CounterSink once per generation, on the live pass.
type Report struct {
	ChainID      string
	Target       string
	Generation   int64
	Decision     drift.Decision
	ProbeSuccess bool
	Failures     []Failure
	Delta        Counters
}

// CounterSink aggregates reports across chains. Implementations must be
// safe for concurrent use.
type CounterSink interface {
	Record(r Report)
}

func chainIDOf(ctx ExecutionContext) string {
	if c, ok := ctx.(chainIdentifier); ok {
		return c.ChainID()
	}
	return ""
}
