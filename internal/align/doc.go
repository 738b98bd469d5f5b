// Package align runs the end-to-end alignment of a CHAT transcript: it
// loads diarization turns, relabels utterances through the timeline
// package, writes the _fixed.cha output and records the run in history.
//
// Runner.AlignBatch fans requests out to a fixed worker pool; DiscoverPairs
// builds requests from a directory of transcripts and audio.
package align
