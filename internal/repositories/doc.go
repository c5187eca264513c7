// Package repositories implements SQLite persistence for the run journal.
//
// The journal records every migration run and the outcome of each page it touched. It is an audit trail only:
// which pages still need work is always decided from the stage directory on disk, never from these tables.
//
// Key Implementations:
//   - [RunRepository] : Run history with status tracking and per-page outcomes
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
