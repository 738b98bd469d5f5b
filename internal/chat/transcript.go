package chat

import (
	"math"
	"path/filepath"
	"strings"

	"chatalign/internal/timeline"
)

// Header is one @ line. Value is empty for bare headers such as @Blank.
// Before is the number of utterances that precede the header, so headers
// interleaved with utterances (@Comment, @G, ...) keep their place.
type Header struct {
	Name   string
	Value  string
	Bare   bool
	Before int
}

// Transcript is a parsed CHAT file.
type Transcript struct {
	Headers    []Header
	Languages  []string
	Registry   *timeline.Registry
	Utterances []*timeline.Utterance
	HasBegin   bool
	HasEnd     bool
}

// PrimaryLanguage returns the first declared language, or fallback.
func (t *Transcript) PrimaryLanguage(fallback string) string {
	if t == nil || len(t.Languages) == 0 {
		return fallback
	}
	return t.Languages[0]
}

// Timed returns the utterances carrying a time mark and the indexes of
// those that do not.
func (t *Transcript) Timed() ([]*timeline.Utterance, []int) {
	var timed []*timeline.Utterance
	var untimed []int
	for i, u := range t.Utterances {
		if math.IsNaN(u.Start) || math.IsNaN(u.End) {
			untimed = append(untimed, i)
			continue
		}
		timed = append(timed, u)
	}
	return timed, untimed
}

// UtteranceCounts returns the number of utterances per participant code.
func (t *Transcript) UtteranceCounts() map[string]int {
	counts := make(map[string]int)
	for _, u := range t.Utterances {
		counts[timeline.NormalizeCode(u.Participant)]++
	}
	return counts
}

// FixedPath returns the output path for an aligned transcript:
// dir/name.cha becomes dir/name_fixed.cha.
func FixedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_fixed.cha"
}

// IsFixedPath reports whether path looks like FixedPath output.
func IsFixedPath(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base))), "_fixed")
}
