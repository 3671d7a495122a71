// Package audit records one row per processed concept.
//
// The CSV writer is the primary record of a run: one file per run, named by
// mode, guarded by an exclusive file lock so two runs cannot interleave
// rows, and flushed after every row so an aborted run keeps everything it
// processed. The optional SQLite ledger mirrors the same rows and keeps a
// history of runs with their counters. Sinks compose with Multi.
package audit
