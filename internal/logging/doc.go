// Package logging assembles structured slog loggers and formatting helpers used
// across chatalign.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so alignment code can tag log
// lines with run IDs, transcript paths, and correlation IDs. Per-run JSON logs
// are teed next to the main log and pruned by CleanupOldLogs. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
