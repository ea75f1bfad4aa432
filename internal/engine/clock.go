package engine

import (
	"context"
	"sync/atomic"
	"time"
)

// Clock is the per-generation sequence counter for history events.
//
// Every event of a generation is stamped with a strictly increasing seq.
// Replay advances the counter past every consumed event, so a live append
// after replay takes the next free slot.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// although a generation only ever appends from its own goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Advance moves the clock forward to seq if it is behind.
func (c *Clock) Advance(seq int64) {
	for {
		cur := c.seq.Load()
		if seq <= cur || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// WallClock is the source of real time for live (non-replayed) steps.
// Replayed steps take their time from recorded history instead.
type WallClock interface {
	Now() time.Time

	// WaitUntil blocks until t or until ctx is done. An error with ctx
	// still live is a timer fault.
	WaitUntil(ctx context.Context, t time.Time) error
}

// SystemClock is the WallClock backed by the time package.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// WaitUntil sleeps until t.
func (SystemClock) WaitUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
