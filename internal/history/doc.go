// Package history records alignment runs in a SQLite database.
//
// Each run row tracks the transcript, its diarization inputs, the terminal
// status and the alignment counters. Overlap diagnostics are stored per run
// and removed with it. Timestamps use a fixed-width UTC layout so ordering
// by started_at is chronological.
package history
