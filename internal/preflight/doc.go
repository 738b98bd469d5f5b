// Package preflight provides readiness checks for the directories and the
// diarization service chatalign depends on.
//
// The CLI "chatalign status" command renders every result. Batch runs call
// RunAll once before starting workers and stop early when a check fails.
package preflight
