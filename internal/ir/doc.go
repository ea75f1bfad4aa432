// Package ir provides the canonical serialization and content-addressed
// identity used for cadence history records.
//
// History payloads are hashed, not just stored, so the same logical event
// always produces the same id no matter which host wrote it or how often a
// generation was replayed. Hashing uses RFC 8785 style canonical JSON with
// domain separation.
//
// Key constraints:
//   - NO floats; numbers are int64 (durations and instants as nanoseconds)
//   - NO null values
//   - Object keys sorted by UTF-16 code units
//   - Strings NFC normalized
//
// ir imports nothing internal.
package ir
