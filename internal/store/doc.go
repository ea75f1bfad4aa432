// Package store provides SQLite-backed durable storage for monitoring chains.
//
// Three tables make up the durable state:
//   - chains: one row per chain, with its head generation and status
//   - generations: the GenerationInput of every generation, with status
//     pending, continued or failed
//   - history: the append-only event log a generation replays from
//
// # Critical Patterns
//
// Content-addressed history: an event id is derived from (chain, generation,
// seq, kind) via ir.EventID. A second writer for the same slot collides and
// is ignored (ON CONFLICT DO NOTHING); the replaying reader then sees the
// first writer's event.
//
// Deterministic ordering: history is always read ORDER BY seq ASC,
// id COLLATE BINARY ASC.
//
// Atomic continuation: marking a generation continued, inserting its
// successor and advancing the chain head happen in one transaction. A
// crash leaves either the old generation pending or the new one pending,
// never both and never neither.
//
// Times are stored as unix nanoseconds in INTEGER columns.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
