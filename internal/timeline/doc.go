// Package timeline reconciles diarization turns with transcript utterances.
//
// Align runs two passes over the inputs. The turn pass walks every
// diarization turn and relabels an utterance only when the turn overlaps
// exactly one of them; it mostly produces diagnostics. The utterance pass is
// authoritative: each utterance takes the single speaker whose turns overlap
// it, and utterances that overlap several speakers keep their original label
// and are reported. New speaker codes are finally merged into the
// participant Registry with placeholder metadata.
//
// Overlap is boundary-inclusive: intervals that merely touch count as
// overlapping. Callers rely on that behaviour, so keep it.
//
// The package does no I/O and keeps no global state. Inputs are validated
// before anything is mutated, so a MalformedIntervalError never leaves a
// transcript half relabeled.
package timeline
