package timeline

import (
	"fmt"
	"strings"
)

// WarningKind classifies an unresolved overlap.
type WarningKind string

const (
	// KindUnmatchedTurn: a turn overlaps no utterance.
	KindUnmatchedTurn WarningKind = "unmatched_turn"
	// KindAmbiguousTurn: a turn overlaps several utterances.
	KindAmbiguousTurn WarningKind = "ambiguous_turn"
	// KindUnresolvedUtterance: an utterance overlaps no turn.
	KindUnresolvedUtterance WarningKind = "unresolved_utterance"
	// KindAmbiguousUtterance: an utterance overlaps turns of several speakers.
	KindAmbiguousUtterance WarningKind = "ambiguous_utterance"
	// KindTieBroken: an ambiguous utterance was resolved by the tie-break.
	KindTieBroken WarningKind = "tie_broken"
)

// Pass identifies the alignment pass that produced a warning.
type Pass int

const (
	PassTurn      Pass = 1
	PassUtterance Pass = 2
)

// OverlapWarning is a non-fatal diagnostic. The affected utterance is left
// unchanged unless Kind is KindTieBroken.
type OverlapWarning struct {
	Kind  WarningKind `json:"kind"`
	Pass  Pass        `json:"pass"`
	Index int         `json:"index"`
	Start float64     `json:"start"`
	End   float64     `json:"end"`
	// Speaker is the turn speaker (turn pass) or the utterance's current
	// participant (utterance pass).
	Speaker    string   `json:"speaker,omitempty"`
	Text       string   `json:"text,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	// Texts lists the main tiers of every utterance overlapped by an
	// ambiguous turn.
	Texts  []string `json:"texts,omitempty"`
	Chosen string   `json:"chosen,omitempty"`
}

func (w OverlapWarning) String() string {
	span := fmt.Sprintf("[%.3f, %.3f]", w.Start, w.End)
	switch w.Kind {
	case KindUnmatchedTurn:
		return fmt.Sprintf("turn %d %s (%s) overlaps no utterance", w.Index, span, w.Speaker)
	case KindAmbiguousTurn:
		return fmt.Sprintf("turn %d %s (%s) overlaps %d utterances from %s", w.Index, span, w.Speaker, len(w.Texts), strings.Join(w.Candidates, ", "))
	case KindUnresolvedUtterance:
		return fmt.Sprintf("utterance %d %s overlaps no turn: %q", w.Index, span, w.Text)
	case KindAmbiguousUtterance:
		return fmt.Sprintf("utterance %d %s could be %s: %q", w.Index, span, strings.Join(w.Candidates, " or "), w.Text)
	case KindTieBroken:
		return fmt.Sprintf("utterance %d %s assigned to %s out of %s: %q", w.Index, span, w.Chosen, strings.Join(w.Candidates, ", "), w.Text)
	default:
		return fmt.Sprintf("%s %d %s", w.Kind, w.Index, span)
	}
}
