// Package store provides the SQLite-backed call journal.
//
// The journal is append-only and holds two kinds of records:
//   - Sessions: one row per control connection
//   - Calls: every mutating call with its canonical params and outcome
//
// # Ordering
//
// All ordering uses the seq INTEGER columns assigned on insert, never the
// recorded timestamps. Queries always ORDER BY seq ASC, so a session reads
// back in the order its calls completed and replays deterministically.
//
// # Canonical params
//
// Params are stored as canonical JSON: object keys sorted by UTF-16 code
// units, strings NFC normalized, no HTML escaping, no insignificant
// whitespace. Two calls with equal arguments store identical text.
//
// # Database configuration
//
//   - WAL mode: readers (the journal command) run during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
package store
