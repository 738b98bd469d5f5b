package timeline

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Placeholder metadata for speakers discovered during alignment.
const (
	PlaceholderName   = "SPEAKER"
	PlaceholderRole   = "Participant"
	PlaceholderCustom = "FIXME"
	DefaultCorpus     = "corpus_name"
)

// Participant is one entry of a transcript's participant table.
type Participant struct {
	Code      string `json:"code"`
	Name      string `json:"name,omitempty"`
	Language  string `json:"language,omitempty"`
	Corpus    string `json:"corpus,omitempty"`
	Age       string `json:"age,omitempty"`
	Sex       string `json:"sex,omitempty"`
	Group     string `json:"group,omitempty"`
	SES       string `json:"ses,omitempty"`
	Role      string `json:"role,omitempty"`
	Education string `json:"education,omitempty"`
	Custom    string `json:"custom,omitempty"`
}

// Registry is an insertion-ordered participant table keyed by
// case-normalized code. Keys are never removed.
type Registry struct {
	order   []string
	entries map[string]Participant
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Participant)}
}

// NormalizeCode trims and upper-cases a participant code.
func NormalizeCode(code string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(code))
}

// Has reports whether code is registered.
func (r *Registry) Has(code string) bool {
	if r == nil {
		return false
	}
	_, ok := r.entries[NormalizeCode(code)]
	return ok
}

// Get returns the participant registered under code.
func (r *Registry) Get(code string) (Participant, bool) {
	if r == nil {
		return Participant{}, false
	}
	p, ok := r.entries[NormalizeCode(code)]
	return p, ok
}

// Put inserts or overwrites a participant. Overwrites keep the original
// position.
func (r *Registry) Put(p Participant) {
	key := NormalizeCode(p.Code)
	if key == "" {
		return
	}
	if r.entries == nil {
		r.entries = make(map[string]Participant)
	}
	p.Code = key
	if _, ok := r.entries[key]; !ok {
		r.order = append(r.order, key)
	}
	r.entries[key] = p
}

// EnsurePlaceholder registers code with placeholder metadata unless it is
// already present. It reports whether an entry was added.
func (r *Registry) EnsurePlaceholder(code, lang, corpus string) bool {
	if r.Has(code) || NormalizeCode(code) == "" {
		return false
	}
	if corpus == "" {
		corpus = DefaultCorpus
	}
	r.Put(Participant{
		Code:     code,
		Name:     PlaceholderName,
		Language: lang,
		Corpus:   corpus,
		Role:     PlaceholderRole,
		Custom:   PlaceholderCustom,
	})
	return true
}

// Codes returns registered codes in insertion order.
func (r *Registry) Codes() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Participants returns registered entries in insertion order.
func (r *Registry) Participants() []Participant {
	if r == nil {
		return nil
	}
	out := make([]Participant, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.entries[code])
	}
	return out
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
