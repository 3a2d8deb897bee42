// Package store keeps a SQLite history of record and verify runs.
//
// Every harness run appends one row: scenario, mode, outcome, failure code
// and location, and the digest of the golden transcript it ran against.
// Rows are never updated. Ordering uses the seq column (a logical counter),
// never timestamps, so listings are stable across clock skew:
//
//	ORDER BY seq DESC, id COLLATE BINARY ASC
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - schema version tracked in PRAGMA user_version
package store
