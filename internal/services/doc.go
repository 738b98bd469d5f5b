// Package services defines shared utilities consumed by the alignment runner
// and the external integrations it drives (diarizers, ffmpeg).
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, transcript paths, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, and RunStatus which turns
//     a failure into the status stored in run history (invalid vs failed).
package services
