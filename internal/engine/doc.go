// Package engine hosts monitoring chains durably.
//
// The host owns what a generation cannot do itself: persisting inputs,
// recording history, waiting on real time and committing continuations.
//
// ARCHITECTURE:
//
// Dispatch loop:
// Host.Run dequeues chain ids from a FIFO work queue and starts one
// goroutine per in-flight generation. A chain is never run twice at once.
// When a generation commits its successor, the chain id is enqueued again.
//
// History-backed execution:
// Each generation runs against a genContext. Probe results, timers and
// effect markers are appended to the store's history before they are
// returned to the handler. After a restart, Recover enqueues every pending
// generation; the handler is re-run from the top and the recorded steps are
// returned instead of executed until the cursor reaches the end of history.
//
// Event Processing Flow:
//  1. generation_started (logical time origin)
//  2. probe_completed | probe_failed
//  3. timer_created, then timer_fired | timer_failed
//  4. effect (zero or more, one per gated side effect)
//  5. CommitContinuation: successor written atomically
//
// CRITICAL PATTERNS:
//
// Logical time:
// CurrentLogicalTime is the time of the last consumed or appended event,
// never the wall clock directly. Replay therefore sees the same times as
// the original pass.
//
// Host faults:
// A replay mismatch, a store failure or a missing continuation is a
// RuntimeError. The generation and chain are marked failed. Host shutdown is
// not a fault: the generation stays pending and is resumed by the next
// process.
package engine
