package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/cadence/internal/monitor"
	"github.com/roach88/cadence/internal/store"
)

// Handler runs one generation. *monitor.Driver implements it.
type Handler interface {
	Run(ctx monitor.ExecutionContext, in monitor.GenerationInput) (monitor.Outcome, error)
}

// Prober checks a target once. It reports whether the target is healthy;
// an error is a probe fault.
type Prober interface {
	Probe(ctx context.Context, target string) (bool, error)
}

// DefaultMaxConcurrent bounds the number of generations in flight. A
// generation holds its slot while it sleeps on the timer, so this is
// effectively the maximum number of running chains.
const DefaultMaxConcurrent = 1024

// DefaultHistoryRetention is the number of past generations whose history
// is kept.
const DefaultHistoryRetention = 10

// Host runs monitoring chains durably on top of a store.
//
// Thread-safety model:
//   - CreateChain, TerminateChain, Recover, Chain, Chains: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// Each in-flight generation runs in its own goroutine against a genContext.
// A chain is never run by two goroutines of the same host at once.
type Host struct {
	store   *store.Store
	handler Handler
	prober  Prober
	clock   WallClock
	ids     ChainIDGenerator
	queue   *workQueue

	maxConcurrent int
	retention     int64
	probeTimeout  time.Duration

	mu       sync.Mutex
	inflight map[string]bool
}

// HostOption allows configuration of host parameters.
type HostOption func(*Host)

// WithClock sets the wall clock. Default: SystemClock.
func WithClock(c WallClock) HostOption {
	return func(h *Host) {
		h.clock = c
	}
}

// WithMaxConcurrent sets the maximum number of generations in flight.
func WithMaxConcurrent(n int) HostOption {
	return func(h *Host) {
		if n > 0 {
			h.maxConcurrent = n
		}
	}
}

// WithHistoryRetention sets how many past generations keep their history.
// Zero keeps everything.
func WithHistoryRetention(generations int64) HostOption {
	return func(h *Host) {
		h.retention = generations
	}
}

// WithIDGenerator sets the chain id generator. Default: UUIDv7Generator.
func WithIDGenerator(g ChainIDGenerator) HostOption {
	return func(h *Host) {
		h.ids = g
	}
}

// WithProbeTimeout bounds each probe call. Zero means no timeout.
func WithProbeTimeout(d time.Duration) HostOption {
	return func(h *Host) {
		h.probeTimeout = d
	}
}

// New creates a Host.
func New(s *store.Store, handler Handler, prober Prober, opts ...HostOption) *Host {
	h := &Host{
		store:         s,
		handler:       handler,
		prober:        prober,
		clock:         SystemClock{},
		ids:           UUIDv7Generator{},
		queue:         newWorkQueue(),
		maxConcurrent: DefaultMaxConcurrent,
		retention:     DefaultHistoryRetention,
		inflight:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CreateChain starts a new chain for target. The first generation is
// scheduled at start, or now if start is zero.
func (h *Host) CreateChain(ctx context.Context, target string, start time.Time) (string, error) {
	now := h.clock.Now()
	if start.IsZero() {
		start = now
	}
	first := monitor.GenerationInput{
		Target:        target,
		ScheduledTime: start.UTC(),
		Generation:    0,
	}
	if err := first.Validate(); err != nil {
		return "", err
	}

	id := h.ids.Generate()
	if err := h.store.CreateChain(ctx, id, first, now); err != nil {
		return "", fmt.Errorf("create chain: %w", err)
	}

	slog.Info("chain created",
		"chain_id", id,
		"target", target,
		"scheduled_time", first.ScheduledTime,
	)
	h.queue.Enqueue(work{ChainID: id})
	return id, nil
}

// TerminateChain stops a chain from being continued. The generation in
// flight, if any, finishes but has no successor. Terminating a stopped
// chain is a no-op.
func (h *Host) TerminateChain(ctx context.Context, chainID string) error {
	changed, err := h.store.TerminateChain(ctx, chainID, "terminated by operator", h.clock.Now())
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("terminate %s: %w", chainID, ErrChainNotFound)
	}
	if err != nil {
		return err
	}
	if changed {
		slog.Info("chain terminated", "chain_id", chainID)
	}
	return nil
}

// Chain returns a chain by id.
func (h *Host) Chain(ctx context.Context, chainID string) (store.Chain, error) {
	c, err := h.store.GetChain(ctx, chainID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Chain{}, fmt.Errorf("%s: %w", chainID, ErrChainNotFound)
	}
	return c, err
}

// Chains lists chains, optionally filtered by status.
func (h *Host) Chains(ctx context.Context, status store.ChainStatus) ([]store.Chain, error) {
	return h.store.ListChains(ctx, status)
}

// Recover enqueues the pending generation of every running chain and
// returns how many were enqueued. Call it once at startup, before or after
// Run.
func (h *Host) Recover(ctx context.Context) (int, error) {
	pending, err := h.store.PendingGenerations(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover: %w", err)
	}
	for _, g := range pending {
		h.queue.Enqueue(work{ChainID: g.ChainID})
	}
	slog.Info("recovered chains", "count", len(pending))
	return len(pending), nil
}

// Run dispatches generations until ctx is cancelled or Stop is called.
// In-flight generations are abandoned (their context is cancelled) and Run
// waits for them to exit before returning.
//
// Must be called from exactly ONE goroutine.
func (h *Host) Run(ctx context.Context) error {
	slog.Info("host starting", "max_concurrent", h.maxConcurrent)

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	slots := make(chan struct{}, h.maxConcurrent)

	for {
		if h.queue.Closed() {
			slog.Info("host stopping: queue closed")
			return nil
		}

		w, ok := h.queue.TryDequeue()
		if ok {
			if !h.claim(w.ChainID) {
				continue
			}
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				h.release(w.ChainID)
				slog.Info("host stopping: context cancelled")
				h.queue.Close()
				return ctx.Err()
			}

			wg.Add(1)
			go func(chainID string) {
				defer wg.Done()
				again := h.runGeneration(runCtx, chainID)
				h.release(chainID)
				<-slots
				if again {
					h.queue.Enqueue(work{ChainID: chainID})
				}
			}(w.ChainID)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("host stopping: context cancelled")
			h.queue.Close()
			return ctx.Err()

		case <-h.queue.Wait():
			// The signal channel closes when the queue is closed.
			if h.queue.Closed() {
				slog.Info("host stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the host. Run returns once in-flight
// generations have been abandoned.
func (h *Host) Stop() {
	h.queue.Close()
}

func (h *Host) claim(chainID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inflight[chainID] {
		return false
	}
	h.inflight[chainID] = true
	return true
}

func (h *Host) release(chainID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inflight, chainID)
}

// runGeneration executes the head generation of a chain, if it is pending.
// It reports whether the chain has a successor to run.
func (h *Host) runGeneration(ctx context.Context, chainID string) bool {
	chain, err := h.store.GetChain(ctx, chainID)
	if err != nil {
		logHostError(ctx, "read chain", chainID, err)
		return false
	}
	if chain.Status != store.ChainRunning {
		return false
	}
	gen, err := h.store.ReadGeneration(ctx, chainID, chain.Generation)
	if err != nil {
		logHostError(ctx, "read generation", chainID, err)
		return false
	}
	if gen.Status != store.GenerationPending {
		return false
	}
	history, err := h.store.ReadHistory(ctx, chainID, chain.Generation)
	if err != nil {
		logHostError(ctx, "read history", chainID, err)
		return false
	}

	in := gen.Input
	if len(history) == 0 {
		// Not started yet: hold until the scheduled time.
		if err := h.clock.WaitUntil(ctx, in.ScheduledTime); err != nil && ctx.Err() != nil {
			return false
		}
		// The chain may have been terminated while waiting.
		chain, err = h.store.GetChain(ctx, chainID)
		if err != nil {
			logHostError(ctx, "read chain", chainID, err)
			return false
		}
		if chain.Status != store.ChainRunning {
			slog.Info("chain stopped before generation started",
				"chain_id", chainID,
				"generation", in.Generation,
				"status", chain.Status,
			)
			return false
		}
	}

	gctx := newGenContext(ctx, h, chainID, in, history)
	slog.Debug("generation starting",
		"chain_id", chainID,
		"generation", in.Generation,
		"replay_events", len(history),
	)

	if err := gctx.start(); err != nil {
		return h.settle(ctx, gctx, err)
	}

	out, runErr := h.handler.Run(gctx, in)
	if runErr == nil && !gctx.continued {
		runErr = &RuntimeError{
			Code:       ErrCodeMissingContinuation,
			Message:    "handler returned without continuing",
			ChainID:    chainID,
			Generation: in.Generation,
		}
	}
	if runErr == nil {
		slog.Debug("generation finished",
			"chain_id", chainID,
			"generation", in.Generation,
			"level", out.Decision.Level.String(),
			"next_scheduled", out.Next.ScheduledTime,
		)
	}
	return h.settle(ctx, gctx, runErr)
}

// settle handles the end of a generation: reschedule the chain, leave it
// for recovery, or mark it failed. It reports whether to reschedule.
func (h *Host) settle(ctx context.Context, g *genContext, err error) bool {
	switch {
	case ctx.Err() != nil:
		slog.Info("generation abandoned",
			"chain_id", g.chainID,
			"generation", g.input.Generation,
		)
	case err != nil:
		slog.Error("generation failed",
			"chain_id", g.chainID,
			"generation", g.input.Generation,
			"error", err,
		)
		if ferr := h.store.FailGeneration(ctx, g.chainID, g.input.Generation, err.Error(), h.clock.Now()); ferr != nil {
			logHostError(ctx, "fail generation", g.chainID, ferr)
		}
	case g.result.Scheduled:
		return true
	default:
		slog.Info("chain stopped", "chain_id", g.chainID, "generation", g.input.Generation)
	}
	return false
}

// runProbe calls the prober with the probe timeout, recovering panics into
// probe faults.
func (h *Host) runProbe(ctx context.Context, target string) (ok bool, err error) {
	if h.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.probeTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("probe panic: %v", r)
		}
	}()
	return h.prober.Probe(ctx, target)
}

func logHostError(ctx context.Context, op, chainID string, err error) {
	if ctx.Err() != nil {
		return
	}
	slog.Error("host error",
		"op", op,
		"chain_id", chainID,
		"error", err,
	)
}
