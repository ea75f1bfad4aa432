package monitor

import (
	"fmt"
	"log/slog"
)

// Guard runs side effects only on the live pass of a generation.
//
// The replay flag is read on every Do call. A generation starts out
// replaying and turns live once recorded history is exhausted, so a cached
// flag would be wrong for the later call sites.
type Guard struct {
	ctx    ExecutionContext
	logger *slog.Logger
}

// NewGuard creates a guard bound to one generation's context. A nil
// logger means slog.Default().
func NewGuard(ctx ExecutionContext, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{ctx: ctx, logger: logger}
}

// Do runs fn unless the context is replaying and reports whether it ran
// to completion. A panic in fn is logged and reported as false.
//
// If the context is an EffectRecorder, the effect is first recorded under
// name. The marker is written before fn runs: an effect interrupted by a
// crash is lost rather than repeated.
func (g *Guard) Do(name string, fn func()) bool {
	if rec, ok := g.ctx.(EffectRecorder); ok {
		live, err := rec.RecordEffect(name)
		if err != nil {
			g.logger.Warn("effect marker not recorded, skipping effect",
				"effect", name,
				"error", err,
			)
			return false
		}
		if !live {
			return false
		}
		return g.run(name, fn)
	}

	if g.ctx.IsReplaying() {
		return false
	}
	return g.run(name, fn)
}

func (g *Guard) run(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("effect panicked",
				"effect", name,
				"error", fmt.Errorf("panic: %v", r),
			)
			ok = false
		}
	}()
	fn()
	return true
}
