// Package harness runs monitoring scenarios against the real generation
// driver and compares the resulting traces with golden files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: execution_drift
//	description: "A slow probe raises an execution drift alert"
//	target: db.internal:5432
//	start: 2026-03-01T12:00:00Z
//	policy:
//	  period: 60s
//	  tolerance: 3s
//	  continuation: actual
//	  alerts: { execution: true, scheduling: true, unhealthy: false }
//	generations:
//	  - probe_latency: 70s
//	    expect: { level: execution_drift, failures: [execution_drift] }
//	  - timer_delay: 5s
//	    replays: 2
//	expect:
//	  counters: { total: 2, execution_failures: 1, timer_failures: 1, unhealthy: 0 }
//	  alerts: 2
//	  next_scheduled: 2026-03-01T12:03:15Z
//
// Each entry of generations scripts one generation:
//
//   - probe_latency: how long the probe takes
//   - probe_fault: the probe call fails with this message
//   - probe_unhealthy: the probe reports the target down
//   - probe_panic / timer_panic: the call panics with this message
//   - timer_delay: how late the timer fires
//   - timer_fault: the timer fails with this message
//   - replays: how many times the finished generation is replayed from its
//     recorded history; a replay must not repeat any effect and must request
//     the same successor
//
// # Determinism
//
// Every generation starts at its scheduled time on a simulated clock that
// only moves when the script says so. The trace is rendered as one canonical
// JSON object per generation, so identical scripts yield identical bytes.
package harness
