// Package monitor implements the drift-aware monitoring control loop.
//
// A monitoring chain is an endless sequence of generations. Each generation
// is one call to Driver.Run:
//
//	Start → ProbeInvoked → TimerAwaited → DecisionComputed → ContinuationRequested → Terminal
//
// The Driver never loops in process. It probes the target once, sleeps on a
// durable timer until the next tick, classifies drift and then asks the host
// to start a fresh generation with the carried-forward GenerationInput.
//
// # Replay
//
// The host may re-run Driver.Run from the top after a crash, feeding back
// recorded probe and timer results. Everything that ends up in the next
// GenerationInput is computed from those recorded values, so a replayed pass
// derives the same successor. Observable effects (alert lines, aggregate
// counters) go through a Guard and fire only on the live pass.
//
// # Failure policy
//
// Probe faults, timer faults and drift are folded into counters and alerts.
// None of them stop the chain: ContinueAsNew is issued from a deferred call
// on every exit path, including recovered panics.
package monitor
