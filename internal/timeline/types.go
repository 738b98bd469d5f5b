package timeline

import (
	"math"
	"slices"
)

// Turn is a span of audio attributed to one speaker by a diarization model.
type Turn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Utterance is one transcribed unit of speech. Tiers holds the main tier
// under the current participant code plus any dependent tiers (%mor, %gra,
// ...); TierOrder keeps their original order.
type Utterance struct {
	Start       float64
	End         float64
	Participant string
	Tiers       map[string]string
	TierOrder   []string
}

// NewUtterance builds an utterance whose main tier holds text.
func NewUtterance(start, end float64, participant, text string) *Utterance {
	return &Utterance{
		Start:       start,
		End:         end,
		Participant: participant,
		Tiers:       map[string]string{participant: text},
		TierOrder:   []string{participant},
	}
}

// Text returns the main tier content.
func (u *Utterance) Text() string {
	if u == nil {
		return ""
	}
	return u.Tiers[u.Participant]
}

// SetTier adds or replaces a tier, appending new names to TierOrder.
func (u *Utterance) SetTier(name, text string) {
	if u.Tiers == nil {
		u.Tiers = make(map[string]string)
	}
	if _, ok := u.Tiers[name]; !ok {
		u.TierOrder = append(u.TierOrder, name)
	}
	u.Tiers[name] = text
}

// AssignSpeaker relabels the utterance to code. The main tier text moves to
// the new key unchanged and keeps its position in TierOrder. Reassigning the
// current label is a no-op. It reports whether anything changed.
func (u *Utterance) AssignSpeaker(code string) bool {
	if u == nil || code == u.Participant {
		return false
	}
	old := u.Participant
	text, ok := u.Tiers[old]
	if u.Tiers == nil {
		u.Tiers = make(map[string]string)
	}
	delete(u.Tiers, old)
	if ok {
		u.Tiers[code] = text
	}
	if idx := slices.Index(u.TierOrder, old); idx >= 0 {
		u.TierOrder[idx] = code
	} else if ok {
		u.TierOrder = append([]string{code}, u.TierOrder...)
	}
	u.Participant = code
	return true
}

// Clone returns a deep copy.
func (u *Utterance) Clone() *Utterance {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Tiers = make(map[string]string, len(u.Tiers))
	for k, v := range u.Tiers {
		clone.Tiers[k] = v
	}
	clone.TierOrder = slices.Clone(u.TierOrder)
	return &clone
}

// Validate checks the turn interval.
func (t Turn) Validate(index int) error {
	return validateInterval("turn", index, t.Start, t.End)
}

// Validate checks the utterance interval and main tier.
func (u *Utterance) Validate(index int) error {
	if u == nil {
		return &MalformedIntervalError{Record: "utterance", Index: index, Start: math.NaN(), End: math.NaN(), Reason: "missing utterance"}
	}
	if err := validateInterval("utterance", index, u.Start, u.End); err != nil {
		return err
	}
	if u.Participant == "" {
		return &MissingMainTierError{Index: index}
	}
	if _, ok := u.Tiers[u.Participant]; !ok {
		return &MissingMainTierError{Index: index, Participant: u.Participant}
	}
	return nil
}

func validateInterval(record string, index int, start, end float64) error {
	switch {
	case math.IsNaN(start) || math.IsNaN(end):
		return &MalformedIntervalError{Record: record, Index: index, Start: start, End: end, Reason: "missing bound"}
	case math.IsInf(start, 0) || math.IsInf(end, 0):
		return &MalformedIntervalError{Record: record, Index: index, Start: start, End: end, Reason: "infinite bound"}
	case end < start:
		return &MalformedIntervalError{Record: record, Index: index, Start: start, End: end, Reason: "end before start"}
	}
	return nil
}
