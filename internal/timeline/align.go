package timeline

import (
	"errors"
	"fmt"
	"strings"
)

// TieBreak selects how the utterance pass treats utterances overlapped by
// several speakers.
type TieBreak string

const (
	// TieBreakNone keeps the transcript's original label.
	TieBreakNone TieBreak = "none"
	// TieBreakLongestOverlap picks the speaker with the most overlapping
	// seconds. Exact ties keep the original label.
	TieBreakLongestOverlap TieBreak = "longest_overlap"
)

// ParseTieBreak converts a configuration value into a TieBreak.
func ParseTieBreak(value string) (TieBreak, error) {
	switch TieBreak(strings.ToLower(strings.TrimSpace(value))) {
	case "", TieBreakNone:
		return TieBreakNone, nil
	case TieBreakLongestOverlap:
		return TieBreakLongestOverlap, nil
	default:
		return "", fmt.Errorf("unknown tie break %q (want %s or %s)", value, TieBreakNone, TieBreakLongestOverlap)
	}
}

// Options tunes Align.
type Options struct {
	// TurnPass runs the turn-centric pass before the authoritative
	// utterance pass. It only reports unless TurnPassWrites is set.
	TurnPass bool
	// TurnPassWrites lets the turn pass relabel utterances that a turn
	// overlaps alone. Its only lasting effect is on utterances the
	// utterance pass finds ambiguous, which then end up with the last
	// overlapping turn's speaker instead of their original label.
	TurnPassWrites bool
	TieBreak       TieBreak
	// Language is recorded on placeholder participants.
	Language string
	// Corpus is recorded on placeholder participants.
	Corpus string
}

// DefaultOptions returns the stock settings: diagnostic turn pass, no tie-break.
func DefaultOptions() Options {
	return Options{
		TurnPass: true,
		TieBreak: TieBreakNone,
		Language: "eng",
		Corpus:   DefaultCorpus,
	}
}

// Result summarizes an alignment run.
type Result struct {
	Warnings []OverlapWarning `json:"warnings"`
	// Relabeled counts utterances whose final participant differs from the
	// one they started with.
	Relabeled int `json:"relabeled"`
	// Assignments counts label changes across both passes.
	Assignments int `json:"assignments"`
	// TurnProposals counts turns that overlapped exactly one utterance
	// whose label differed from the turn speaker.
	TurnProposals int `json:"turn_proposals"`
	// Added lists participant codes inserted into the registry.
	Added []string `json:"added"`
}

// Count returns the number of warnings of the given kind.
func (r Result) Count(kind WarningKind) int {
	n := 0
	for _, w := range r.Warnings {
		if w.Kind == kind {
			n++
		}
	}
	return n
}

// Summary returns warning counts keyed by kind.
func (r Result) Summary() map[WarningKind]int {
	out := make(map[WarningKind]int)
	for _, w := range r.Warnings {
		out[w.Kind]++
	}
	return out
}

// Align relabels utterances in place from the diarization turns and merges
// new speaker codes into registry. Malformed input fails before any
// utterance is touched; ambiguity never fails and is reported in Result.
func Align(turns []Turn, utterances []*Utterance, registry *Registry, opts Options) (Result, error) {
	if registry == nil {
		return Result{}, errors.New("align: nil participant registry")
	}
	if err := Validate(turns, utterances); err != nil {
		return Result{}, err
	}
	if opts.TieBreak == "" {
		opts.TieBreak = TieBreakNone
	}
	turns = normalizeTurns(turns)

	before := make([]string, len(utterances))
	for i, u := range utterances {
		before[i] = u.Participant
	}

	var res Result
	if opts.TurnPass {
		proposed, changed := turnPass(turns, utterances, opts.TurnPassWrites, &res.Warnings)
		res.TurnProposals = proposed
		res.Assignments += changed
	}
	res.Assignments += utterancePass(turns, utterances, opts.TieBreak, &res.Warnings)
	res.Added = MergeParticipants(utterances, registry, opts.Language, opts.Corpus)

	for i, u := range utterances {
		if !sameCode(u.Participant, before[i]) {
			res.Relabeled++
		}
	}
	return res, nil
}

// Validate checks every turn and utterance, returning the first problem.
func Validate(turns []Turn, utterances []*Utterance) error {
	for i, t := range turns {
		if err := t.Validate(i); err != nil {
			return err
		}
	}
	for i, u := range utterances {
		if err := u.Validate(i); err != nil {
			return err
		}
	}
	return nil
}

// turnPass matches each turn against the utterances. A turn overlapping
// exactly one utterance proposes its speaker for it; the proposal is applied
// only when write is set.
func turnPass(turns []Turn, utterances []*Utterance, write bool, warnings *[]OverlapWarning) (proposed, changed int) {
	for ti, t := range turns {
		var hits []*Utterance
		for _, u := range utterances {
			if turnOverlaps(t, u) {
				hits = append(hits, u)
			}
		}
		switch len(hits) {
		case 0:
			*warnings = append(*warnings, OverlapWarning{
				Kind:    KindUnmatchedTurn,
				Pass:    PassTurn,
				Index:   ti,
				Start:   t.Start,
				End:     t.End,
				Speaker: t.Speaker,
			})
		case 1:
			if sameCode(hits[0].Participant, t.Speaker) {
				continue
			}
			proposed++
			if write && hits[0].AssignSpeaker(t.Speaker) {
				changed++
			}
		default:
			w := OverlapWarning{
				Kind:    KindAmbiguousTurn,
				Pass:    PassTurn,
				Index:   ti,
				Start:   t.Start,
				End:     t.End,
				Speaker: t.Speaker,
			}
			for _, u := range hits {
				w.Candidates = appendUnique(w.Candidates, u.Participant)
				w.Texts = append(w.Texts, u.Text())
			}
			*warnings = append(*warnings, w)
		}
	}
	return proposed, changed
}

// utterancePass gives each utterance the single speaker overlapping it.
func utterancePass(turns []Turn, utterances []*Utterance, tieBreak TieBreak, warnings *[]OverlapWarning) int {
	changed := 0
	for ui, u := range utterances {
		var speakers []string
		for _, t := range turns {
			if turnOverlaps(t, u) {
				speakers = appendUnique(speakers, t.Speaker)
			}
		}
		switch len(speakers) {
		case 0:
			*warnings = append(*warnings, OverlapWarning{
				Kind:    KindUnresolvedUtterance,
				Pass:    PassUtterance,
				Index:   ui,
				Start:   u.Start,
				End:     u.End,
				Speaker: u.Participant,
				Text:    u.Text(),
			})
		case 1:
			if assign(u, speakers[0]) {
				changed++
			}
		default:
			w := OverlapWarning{
				Kind:       KindAmbiguousUtterance,
				Pass:       PassUtterance,
				Index:      ui,
				Start:      u.Start,
				End:        u.End,
				Speaker:    u.Participant,
				Text:       u.Text(),
				Candidates: speakers,
			}
			if tieBreak == TieBreakLongestOverlap {
				if chosen, ok := longestOverlap(turns, u, speakers); ok {
					w.Kind = KindTieBroken
					w.Chosen = chosen
					if assign(u, chosen) {
						changed++
					}
				}
			}
			*warnings = append(*warnings, w)
		}
	}
	return changed
}

// longestOverlap returns the speaker with the largest summed overlap. It
// fails when the best total is zero or shared.
func longestOverlap(turns []Turn, u *Utterance, speakers []string) (string, bool) {
	totals := make(map[string]float64, len(speakers))
	for _, t := range turns {
		totals[t.Speaker] += overlapSeconds(t.Start, t.End, u.Start, u.End)
	}
	best, bestTotal, tied := "", 0.0, false
	for _, s := range speakers {
		switch total := totals[s]; {
		case total > bestTotal:
			best, bestTotal, tied = s, total, false
		case total == bestTotal && total > 0:
			tied = true
		}
	}
	if best == "" || tied {
		return "", false
	}
	return best, true
}

// MergeParticipants registers every participant code used by utterances
// that the registry does not know yet. It returns the added codes in
// first-use order.
func MergeParticipants(utterances []*Utterance, registry *Registry, lang, corpus string) []string {
	var added []string
	for _, u := range utterances {
		if u == nil {
			continue
		}
		if registry.EnsurePlaceholder(u.Participant, lang, corpus) {
			added = append(added, NormalizeCode(u.Participant))
		}
	}
	return added
}

// normalizeTurns returns a copy of turns with registry-style speaker codes.
func normalizeTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		t.Speaker = NormalizeCode(t.Speaker)
		out[i] = t
	}
	return out
}

func sameCode(a, b string) bool {
	return NormalizeCode(a) == NormalizeCode(b)
}

// assign relabels u unless its label already names code in another case.
func assign(u *Utterance, code string) bool {
	if sameCode(u.Participant, code) {
		return false
	}
	return u.AssignSpeaker(code)
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}
