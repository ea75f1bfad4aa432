package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/monitor"
	"github.com/roach88/cadence/internal/store"
)

// History event kinds. They are persisted and must not be renamed.
const (
	EventGenerationStarted = "generation_started"
	EventProbeCompleted    = "probe_completed"
	EventProbeFailed       = "probe_failed"
	EventTimerCreated      = "timer_created"
	EventTimerFired        = "timer_fired"
	EventTimerFailed       = "timer_failed"
	EventEffect            = "effect"
)

// genContext runs one generation against its recorded history.
//
// Every step first looks at the history cursor. If an event is recorded at
// the cursor, the step returns the recorded result (replay). Otherwise the
// step runs for real and appends its result before returning (live). A
// generation flips from replay to live at most once.
//
// Logical time is the At of the last consumed or appended event.
//
// A host-side fault (non-determinism, store failure, host shutdown) is
// latched in fatal. The steps still return a value so the handler can run
// to ContinueAsNew, which then refuses to commit.
type genContext struct {
	ctx     context.Context
	host    *Host
	chainID string
	input   monitor.GenerationInput

	history []store.Event
	cursor  int
	seq     *Clock
	now     time.Time

	fatal     error
	continued bool
	result    store.Continuation
}

func newGenContext(ctx context.Context, h *Host, chainID string, in monitor.GenerationInput, history []store.Event) *genContext {
	return &genContext{
		ctx:     ctx,
		host:    h,
		chainID: chainID,
		input:   in,
		history: history,
		seq:     NewClock(),
	}
}

var (
	_ monitor.ExecutionContext = (*genContext)(nil)
	_ monitor.EffectRecorder   = (*genContext)(nil)
)

// ChainID returns the id of the chain being run.
func (g *genContext) ChainID() string {
	return g.chainID
}

// IsReplaying reports whether the cursor is behind the recorded history.
func (g *genContext) IsReplaying() bool {
	return g.cursor < len(g.history)
}

// CurrentLogicalTime returns the time of the last consumed or appended event.
func (g *genContext) CurrentLogicalTime() time.Time {
	return g.now
}

// start consumes or records the generation_started event.
func (g *genContext) start() error {
	if _, ok, err := g.replay(EventGenerationStarted); ok || err != nil {
		return err
	}
	return g.append(EventGenerationStarted, ir.Object{
		"generation":      g.input.Generation,
		"scheduled_time":  g.input.ScheduledTime,
		"history_version": ir.HistoryVersion,
		"engine_version":  ir.EngineVersion,
	}, g.host.clock.Now())
}

type failurePayload struct {
	Error string `json:"error"`
}

type probePayload struct {
	Success bool `json:"success"`
}

type timerPayload struct {
	FireAt int64 `json:"fire_at"`
}

type effectPayload struct {
	Name string `json:"name"`
}

// InvokeProbe returns the recorded probe result, or runs the host prober
// and records its result.
func (g *genContext) InvokeProbe(target string) (monitor.ProbeResult, error) {
	e, ok, err := g.replay(EventProbeCompleted, EventProbeFailed)
	if err != nil {
		return monitor.ProbeResult{ExecutionTimestamp: g.now}, err
	}
	if ok {
		if e.Kind == EventProbeFailed {
			var p failurePayload
			if err := g.decode(e, &p); err != nil {
				return monitor.ProbeResult{ExecutionTimestamp: g.now}, err
			}
			return monitor.ProbeResult{ExecutionTimestamp: e.At}, errors.New(p.Error)
		}
		var p probePayload
		if err := g.decode(e, &p); err != nil {
			return monitor.ProbeResult{ExecutionTimestamp: g.now}, err
		}
		return monitor.ProbeResult{ExecutionTimestamp: e.At, Success: p.Success}, nil
	}

	success, probeErr := g.host.runProbe(g.ctx, target)
	at := g.host.clock.Now()
	if probeErr != nil {
		if err := g.append(EventProbeFailed, ir.Object{"error": probeErr.Error()}, at); err != nil {
			return monitor.ProbeResult{ExecutionTimestamp: g.now}, err
		}
		return monitor.ProbeResult{ExecutionTimestamp: at}, probeErr
	}
	if err := g.append(EventProbeCompleted, ir.Object{"success": success}, at); err != nil {
		return monitor.ProbeResult{ExecutionTimestamp: g.now}, err
	}
	return monitor.ProbeResult{ExecutionTimestamp: at, Success: success}, nil
}

// AwaitTimer records a durable timer at fireAt and waits for it.
//
// A crash between timer_created and timer_fired resumes the wait after
// replay; the timer is not re-created.
func (g *genContext) AwaitTimer(fireAt time.Time) (time.Time, error) {
	e, ok, err := g.replay(EventTimerCreated)
	if err != nil {
		return g.now, err
	}
	if ok {
		var p timerPayload
		if err := g.decode(e, &p); err != nil {
			return g.now, err
		}
		if recorded := time.Unix(0, p.FireAt).UTC(); !recorded.Equal(fireAt) {
			return g.now, g.latch(newNonDeterminismError(g.chainID, g.input.Generation, e.Seq,
				fmt.Sprintf("timer at %s", fireAt.Format(time.RFC3339Nano)),
				fmt.Sprintf("timer at %s", recorded.Format(time.RFC3339Nano))))
		}
	} else {
		if err := g.append(EventTimerCreated, ir.Object{"fire_at": fireAt}, g.host.clock.Now()); err != nil {
			return g.now, err
		}
	}

	e, ok, err = g.replay(EventTimerFired, EventTimerFailed)
	if err != nil {
		return g.now, err
	}
	if ok {
		if e.Kind == EventTimerFailed {
			var p failurePayload
			if err := g.decode(e, &p); err != nil {
				return g.now, err
			}
			return e.At, errors.New(p.Error)
		}
		return e.At, nil
	}

	waitErr := g.host.clock.WaitUntil(g.ctx, fireAt)
	if ctxErr := g.ctx.Err(); ctxErr != nil {
		return g.now, g.latch(fmt.Errorf("generation abandoned while waiting: %w", ctxErr))
	}
	at := g.host.clock.Now()
	if waitErr != nil {
		if err := g.append(EventTimerFailed, ir.Object{"error": waitErr.Error()}, at); err != nil {
			return g.now, err
		}
		return at, waitErr
	}
	if at.Before(fireAt) {
		at = fireAt
	}
	if err := g.append(EventTimerFired, ir.Object{}, at); err != nil {
		return g.now, err
	}
	return at, nil
}

// RecordEffect consumes a recorded effect marker, or records a new one.
// It returns true only when the marker was newly recorded.
func (g *genContext) RecordEffect(name string) (bool, error) {
	e, ok, err := g.replay(EventEffect)
	if err != nil {
		return false, err
	}
	if ok {
		var p effectPayload
		if err := g.decode(e, &p); err != nil {
			return false, err
		}
		if p.Name != name {
			return false, g.latch(newNonDeterminismError(g.chainID, g.input.Generation, e.Seq,
				fmt.Sprintf("effect %q", name), fmt.Sprintf("effect %q", p.Name)))
		}
		return false, nil
	}

	if err := g.append(EventEffect, ir.Object{"name": name}, g.now); err != nil {
		return false, err
	}
	return true, nil
}

// ContinueAsNew commits the successor generation.
func (g *genContext) ContinueAsNew(next monitor.GenerationInput) error {
	if g.fatal != nil {
		return g.fatal
	}
	if g.continued {
		return g.latch(&RuntimeError{
			Code:       ErrCodeDuplicateContinuation,
			Message:    "ContinueAsNew called more than once",
			ChainID:    g.chainID,
			Generation: g.input.Generation,
		})
	}
	if next.Generation != g.input.Generation+1 {
		return g.latch(&RuntimeError{
			Code:       ErrCodeNonDeterminism,
			Message:    fmt.Sprintf("successor generation %d does not follow %d", next.Generation, g.input.Generation),
			ChainID:    g.chainID,
			Generation: g.input.Generation,
		})
	}
	if err := g.ctx.Err(); err != nil {
		return g.latch(fmt.Errorf("generation abandoned before continuing: %w", err))
	}

	res, err := g.host.store.CommitContinuation(g.ctx, g.chainID, g.input.Generation, next, g.now, g.host.retention)
	if err != nil {
		return g.latch(&RuntimeError{
			Code:       ErrCodeStoreFailure,
			Message:    err.Error(),
			ChainID:    g.chainID,
			Generation: g.input.Generation,
		})
	}
	g.continued = true
	g.result = res
	return nil
}

// replay returns the event at the cursor if one is recorded. It latches a
// non-determinism error if the recorded kind is not one of kinds.
func (g *genContext) replay(kinds ...string) (store.Event, bool, error) {
	if g.fatal != nil {
		return store.Event{}, false, g.fatal
	}
	if !g.IsReplaying() {
		return store.Event{}, false, nil
	}

	e := g.history[g.cursor]
	if !slices.Contains(kinds, e.Kind) {
		return store.Event{}, false, g.latch(newNonDeterminismError(
			g.chainID, g.input.Generation, e.Seq, fmt.Sprint(kinds), e.Kind))
	}
	g.cursor++
	g.seq.Advance(e.Seq)
	g.now = e.At
	return e, true, nil
}

// append records a live event at the next seq.
func (g *genContext) append(kind string, payload ir.Object, at time.Time) error {
	if g.fatal != nil {
		return g.fatal
	}
	if err := g.ctx.Err(); err != nil {
		return g.latch(fmt.Errorf("generation abandoned: %w", err))
	}

	seq := g.seq.Next()
	id, err := ir.EventID(g.chainID, g.input.Generation, seq, kind)
	if err != nil {
		return g.latch(err)
	}
	data, err := ir.MarshalCanonical(payload)
	if err != nil {
		return g.latch(fmt.Errorf("marshal %s payload: %w", kind, err))
	}

	e := store.Event{
		ID:         id,
		ChainID:    g.chainID,
		Generation: g.input.Generation,
		Seq:        seq,
		Kind:       kind,
		Payload:    data,
		At:         at,
	}
	inserted, err := g.host.store.AppendEvent(g.ctx, e)
	if err != nil {
		return g.latch(&RuntimeError{
			Code:       ErrCodeStoreFailure,
			Message:    err.Error(),
			ChainID:    g.chainID,
			Generation: g.input.Generation,
		})
	}
	if !inserted {
		// Another runner owns this generation.
		return g.latch(newNonDeterminismError(g.chainID, g.input.Generation, seq, kind, "a concurrent write"))
	}

	g.history = append(g.history, e)
	g.cursor = len(g.history)
	g.now = at
	slog.Debug("history event recorded",
		"chain_id", g.chainID,
		"generation", g.input.Generation,
		"seq", seq,
		"kind", kind,
	)
	return nil
}

func (g *genContext) decode(e store.Event, v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return g.latch(fmt.Errorf("decode %s at seq %d: %w", e.Kind, e.Seq, err))
	}
	return nil
}

// latch records the first host fault and returns it.
func (g *genContext) latch(err error) error {
	if g.fatal == nil {
		g.fatal = err
	}
	return g.fatal
}
