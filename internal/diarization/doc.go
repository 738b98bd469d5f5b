// Package diarization loads speaker turns for an audio recording.
//
// Turns come from a file written by a diarizer (JSON, YAML or RTTM), from an
// external diarizer command, or from a diarization HTTP service. Every
// source returns turns sorted by start time.
package diarization
