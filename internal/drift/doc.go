// Package drift classifies how far one monitoring generation strayed from
// its cadence.
//
// Two drifts are measured against the generation's scheduled time:
//
//	execution drift  = probe completion - scheduled
//	scheduling drift = timer fire - (scheduled + period)
//
// Evaluate is a pure function. A replayed generation re-evaluates it with
// the recorded timestamps and must reach the same decision, so nothing in
// this package reads a clock or performs I/O.
package drift
