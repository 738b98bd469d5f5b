package timeline_test

import (
	"errors"
	"math"
	"slices"
	"testing"

	"chatalign/internal/timeline"
)

func utterances(specs ...*timeline.Utterance) []*timeline.Utterance { return specs }

func labels(us []*timeline.Utterance) []string {
	out := make([]string, len(us))
	for i, u := range us {
		out[i] = u.Participant
	}
	return out
}

func TestAlignTwoSpeakerScenario(t *testing.T) {
	turns := []timeline.Turn{
		{Start: 0.0, End: 1.5, Speaker: "A"},
		{Start: 1.5, End: 3.0, Speaker: "B"},
	}
	us := utterances(
		timeline.NewUtterance(0.0, 1.4, "X", "hello there"),
		timeline.NewUtterance(1.6, 2.9, "X", "how are you"),
	)
	reg := timeline.NewRegistry()

	res, err := timeline.Align(turns, us, reg, timeline.DefaultOptions())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}

	if got := labels(us); !slices.Equal(got, []string{"A", "B"}) {
		t.Fatalf("labels = %v, want [A B]", got)
	}
	if us[0].Tiers["A"] != "hello there" {
		t.Fatalf("utterance 0 tiers = %v", us[0].Tiers)
	}
	if _, ok := us[0].Tiers["X"]; ok {
		t.Fatalf("old key X still present: %v", us[0].Tiers)
	}
	if us[1].Tiers["B"] != "how are you" {
		t.Fatalf("utterance 1 tiers = %v", us[1].Tiers)
	}
	if !reg.Has("A") || !reg.Has("B") {
		t.Fatalf("registry codes = %v, want A and B", reg.Codes())
	}
	if !slices.Equal(res.Added, []string{"A", "B"}) {
		t.Fatalf("added = %v", res.Added)
	}
	if res.Relabeled != 2 {
		t.Fatalf("relabeled = %d, want 2", res.Relabeled)
	}
	p, _ := reg.Get("A")
	if p.Name != timeline.PlaceholderName || p.Role != timeline.PlaceholderRole || p.Language != "eng" {
		t.Fatalf("unexpected placeholder %+v", p)
	}
}

func TestAlignNormalizesTurnSpeakerCase(t *testing.T) {
	turns := []timeline.Turn{
		{Start: 0.0, End: 1.0, Speaker: "spk0"},
		{Start: 2.0, End: 3.0, Speaker: "chi"},
	}
	us := utterances(
		timeline.NewUtterance(0.0, 0.9, "CHI", "more juice"),
		timeline.NewUtterance(2.1, 2.9, "CHI", "all gone"),
	)
	reg := timeline.NewRegistry()
	reg.Put(timeline.Participant{Code: "CHI", Role: "Target_Child"})

	res, err := timeline.Align(turns, us, reg, timeline.DefaultOptions())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if got := labels(us); !slices.Equal(got, []string{"SPK0", "CHI"}) {
		t.Fatalf("labels = %v, want [SPK0 CHI]", got)
	}
	if us[0].Tiers["SPK0"] != "more juice" || us[1].Tiers["CHI"] != "all gone" {
		t.Fatalf("tiers = %v / %v", us[0].Tiers, us[1].Tiers)
	}
	if res.Relabeled != 1 || res.Assignments != 1 {
		t.Fatalf("relabeled = %d assignments = %d, want 1 and 1", res.Relabeled, res.Assignments)
	}
	if !slices.Equal(res.Added, []string{"SPK0"}) {
		t.Fatalf("added = %v, want [SPK0]", res.Added)
	}
	for _, u := range us {
		if p, ok := reg.Get(u.Participant); !ok || p.Code != u.Participant {
			t.Fatalf("label %q does not match registry entry %+v", u.Participant, p)
		}
	}
	if turns[0].Speaker != "spk0" {
		t.Fatalf("caller turns mutated: %+v", turns[0])
	}
}

func TestAlignAmbiguousUtteranceKeepsOriginalLabel(t *testing.T) {
	turns := []timeline.Turn{
		{Start: 0.0, End: 1.0, Speaker: "A"},
		{Start: 0.5, End: 1.5, Speaker: "B"},
	}
	us := utterances(timeline.NewUtterance(0.0, 1.5, "X", "we both talked"))
	reg := timeline.NewRegistry()
	reg.Put(timeline.Participant{Code: "X", Name: "Original", Role: "Target_Child"})

	res, err := timeline.Align(turns, us, reg, timeline.DefaultOptions())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if us[0].Participant != "X" {
		t.Fatalf("participant = %q, want X", us[0].Participant)
	}
	if res.Count(timeline.KindAmbiguousUtterance) != 1 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
	var amb timeline.OverlapWarning
	for _, w := range res.Warnings {
		if w.Kind == timeline.KindAmbiguousUtterance {
			amb = w
		}
	}
	if !slices.Equal(amb.Candidates, []string{"A", "B"}) || amb.Text != "we both talked" {
		t.Fatalf("ambiguous warning = %+v", amb)
	}
	if len(res.Added) != 0 {
		t.Fatalf("expected no registry additions, got %v", res.Added)
	}
	if p, _ := reg.Get("X"); p.Name != "Original" {
		t.Fatalf("existing participant overwritten: %+v", p)
	}
}

func TestAlignTurnPassWritesMatchesLegacyOutcome(t *testing.T) {
	turns := []timeline.Turn{
		{Start: 0.0, End: 1.0, Speaker: "A"},
		{Start: 0.5, End: 1.5, Speaker: "B"},
	}
	us := utterances(timeline.NewUtterance(0.0, 1.5, "X", "we both talked"))
	opts := timeline.DefaultOptions()
	opts.TurnPassWrites = true

	res, err := timeline.Align(turns, us, timeline.NewRegistry(), opts)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if us[0].Participant != "B" {
		t.Fatalf("participant = %q, want B from the last single-match turn", us[0].Participant)
	}
	if res.TurnProposals != 2 || res.Assignments != 2 {
		t.Fatalf("proposals=%d assignments=%d", res.TurnProposals, res.Assignments)
	}
}

func TestAlignBoundaryTouchCountsAsOverlap(t *testing.T) {
	if !timeline.Overlaps(1.0, 2.0, 2.0, 3.0) {
		t.Fatal("touching intervals must overlap")
	}
	turns := []timeline.Turn{{Start: 1.0, End: 2.0, Speaker: "A"}}
	us := utterances(timeline.NewUtterance(2.0, 3.0, "X", "late start"))

	if _, err := timeline.Align(turns, us, timeline.NewRegistry(), timeline.DefaultOptions()); err != nil {
		t.Fatalf("Align: %v", err)
	}
	if us[0].Participant != "A" {
		t.Fatalf("participant = %q, want A", us[0].Participant)
	}
}

func TestOverlapsPredicate(t *testing.T) {
	cases := []struct {
		name           string
		a0, a1, b0, b1 float64
		want           bool
	}{
		{"disjoint", 0, 1, 2, 3, false},
		{"disjoint reversed", 2, 3, 0, 1, false},
		{"partial", 0, 2, 1, 3, true},
		{"contains", 0, 10, 2, 3, true},
		{"contained", 2, 3, 0, 10, true},
		{"touch end", 0, 1, 1, 2, true},
		{"touch start", 1, 2, 0, 1, true},
		{"identical", 1, 2, 1, 2, true},
		{"zero length inside", 0, 2, 1, 1, true},
		{"zero length outside", 0, 2, 3, 3, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := timeline.Overlaps(tc.a0, tc.a1, tc.b0, tc.b1); got != tc.want {
				t.Fatalf("Overlaps(%v,%v,%v,%v) = %v, want %v", tc.a0, tc.a1, tc.b0, tc.b1, got, tc.want)
			}
		})
	}
}

func TestAlignIsIdempotent(t *testing.T) {
	turns := []timeline.Turn{
		{Start: 0, End: 2, Speaker: "SPEAKER_00"},
		{Start: 1.8, End: 4, Speaker: "SPEAKER_01"},
		{Start: 6, End: 7, Speaker: "SPEAKER_00"},
	}
	us := utterances(
		timeline.NewUtterance(0.1, 1.0, "PAR0", "one"),
		timeline.NewUtterance(1.5, 3.0, "PAR0", "two"),
		timeline.NewUtterance(3.2, 3.9, "PAR1", "three"),
		timeline.NewUtterance(4.5, 5.5, "PAR1", "four"),
		timeline.NewUtterance(6.1, 6.9, "PAR1", "five"),
	)
	reg := timeline.NewRegistry()

	if _, err := timeline.Align(turns, us, reg, timeline.DefaultOptions()); err != nil {
		t.Fatalf("first Align: %v", err)
	}
	first := labels(us)
	codes := reg.Codes()

	res, err := timeline.Align(turns, us, reg, timeline.DefaultOptions())
	if err != nil {
		t.Fatalf("second Align: %v", err)
	}
	if got := labels(us); !slices.Equal(got, first) {
		t.Fatalf("second run changed labels: %v -> %v", first, got)
	}
	if res.Relabeled != 0 || res.Assignments != 0 || len(res.Added) != 0 {
		t.Fatalf("second run was not a no-op: %+v", res)
	}
	if !slices.Equal(reg.Codes(), codes) {
		t.Fatalf("registry changed: %v -> %v", codes, reg.Codes())
	}
}

func TestAlignCoverageAndRegistryCompleteness(t *testing.T) {
	turns := []timeline.Turn{
		{Start: 0, End: 1, Speaker: "A"},
		{Start: 2, End: 3, Speaker: "B"},
		{Start: 2.5, End: 3.5, Speaker: "C"},
		{Start: 5, End: 6, Speaker: "A"},
	}
	us := utterances(
		timeline.NewUtterance(0.2, 0.8, "P", "solo a"),
		timeline.NewUtterance(2.1, 3.2, "P", "b and c"),
		timeline.NewUtterance(3.8, 4.2, "Q", "nobody"),
		timeline.NewUtterance(5.5, 5.9, "Q", "a again"),
	)
	texts := make([]string, len(us))
	for i, u := range us {
		texts[i] = u.Text()
	}
	reg := timeline.NewRegistry()
	reg.Put(timeline.Participant{Code: "P", Role: "Investigator"})

	res, err := timeline.Align(turns, us, reg, timeline.DefaultOptions())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if got := labels(us); !slices.Equal(got, []string{"A", "P", "Q", "A"}) {
		t.Fatalf("labels = %v", got)
	}
	for i, u := range us {
		if u.Text() != texts[i] {
			t.Fatalf("utterance %d text = %q, want %q", i, u.Text(), texts[i])
		}
		if !reg.Has(u.Participant) {
			t.Fatalf("participant %q missing from registry %v", u.Participant, reg.Codes())
		}
	}
	if !slices.Equal(reg.Codes(), []string{"P", "A", "Q"}) {
		t.Fatalf("registry order = %v", reg.Codes())
	}
	summary := res.Summary()
	if summary[timeline.KindAmbiguousUtterance] != 1 || summary[timeline.KindUnresolvedUtterance] != 1 {
		t.Fatalf("summary = %v", summary)
	}
}

func TestAlignTurnPassDiagnostics(t *testing.T) {
	turns := []timeline.Turn{
		{Start: 10, End: 11, Speaker: "A"},
		{Start: 0, End: 5, Speaker: "B"},
	}
	us := utterances(
		timeline.NewUtterance(0, 1, "X", "first"),
		timeline.NewUtterance(2, 3, "Y", "second"),
	)

	res, err := timeline.Align(turns, us, timeline.NewRegistry(), timeline.DefaultOptions())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if res.Count(timeline.KindUnmatchedTurn) != 1 {
		t.Fatalf("expected one unmatched turn, got %+v", res.Warnings)
	}
	var amb *timeline.OverlapWarning
	for i := range res.Warnings {
		if res.Warnings[i].Kind == timeline.KindAmbiguousTurn {
			amb = &res.Warnings[i]
		}
	}
	if amb == nil {
		t.Fatalf("expected ambiguous turn warning, got %+v", res.Warnings)
	}
	if amb.Pass != timeline.PassTurn || amb.Index != 1 || !slices.Equal(amb.Texts, []string{"first", "second"}) {
		t.Fatalf("ambiguous turn warning = %+v", amb)
	}
	if got := labels(us); !slices.Equal(got, []string{"B", "B"}) {
		t.Fatalf("labels = %v", got)
	}
}

func TestAlignWithoutTurnPass(t *testing.T) {
	turns := []timeline.Turn{{Start: 10, End: 11, Speaker: "A"}}
	us := utterances(timeline.NewUtterance(0, 1, "X", "first"))
	opts := timeline.DefaultOptions()
	opts.TurnPass = false

	res, err := timeline.Align(turns, us, timeline.NewRegistry(), opts)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if res.Count(timeline.KindUnmatchedTurn) != 0 {
		t.Fatalf("turn pass warnings emitted while disabled: %+v", res.Warnings)
	}
	if res.Count(timeline.KindUnresolvedUtterance) != 1 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
}

func TestAlignEmptyTurnsLeavesEverythingUnresolved(t *testing.T) {
	us := utterances(
		timeline.NewUtterance(0, 1, "X", "a"),
		timeline.NewUtterance(1, 2, "Y", "b"),
	)
	reg := timeline.NewRegistry()
	res, err := timeline.Align(nil, us, reg, timeline.DefaultOptions())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if res.Count(timeline.KindUnresolvedUtterance) != 2 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
	if !slices.Equal(labels(us), []string{"X", "Y"}) {
		t.Fatalf("labels changed: %v", labels(us))
	}
	if !slices.Equal(reg.Codes(), []string{"X", "Y"}) {
		t.Fatalf("registry = %v", reg.Codes())
	}
}

func TestAlignLongestOverlapTieBreak(t *testing.T) {
	turns := []timeline.Turn{
		{Start: 0, End: 0.4, Speaker: "A"},
		{Start: 0.4, End: 2.0, Speaker: "B"},
	}
	us := utterances(
		timeline.NewUtterance(0, 2, "X", "mostly b"),
		timeline.NewUtterance(10, 12, "Y", "untouched"),
	)
	opts := timeline.DefaultOptions()
	opts.TieBreak = timeline.TieBreakLongestOverlap

	res, err := timeline.Align(turns, us, timeline.NewRegistry(), opts)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if us[0].Participant != "B" {
		t.Fatalf("participant = %q, want B", us[0].Participant)
	}
	if res.Count(timeline.KindTieBroken) != 1 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
}

func TestAlignLongestOverlapExactTieKeepsLabel(t *testing.T) {
	turns := []timeline.Turn{
		{Start: 0, End: 1, Speaker: "A"},
		{Start: 1, End: 2, Speaker: "B"},
	}
	us := utterances(timeline.NewUtterance(0, 2, "X", "even split"))
	opts := timeline.DefaultOptions()
	opts.TieBreak = timeline.TieBreakLongestOverlap

	res, err := timeline.Align(turns, us, timeline.NewRegistry(), opts)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if us[0].Participant != "X" {
		t.Fatalf("participant = %q, want X", us[0].Participant)
	}
	if res.Count(timeline.KindAmbiguousUtterance) != 1 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
}

func TestAlignRejectsMalformedIntervalsBeforeMutating(t *testing.T) {
	cases := []struct {
		name   string
		turns  []timeline.Turn
		us     []*timeline.Utterance
		record string
	}{
		{
			name:   "turn end before start",
			turns:  []timeline.Turn{{Start: 0, End: 1, Speaker: "A"}, {Start: 3, End: 2, Speaker: "B"}},
			us:     utterances(timeline.NewUtterance(0, 1, "X", "x")),
			record: "turn",
		},
		{
			name:   "utterance missing bound",
			turns:  []timeline.Turn{{Start: 0, End: 1, Speaker: "A"}},
			us:     utterances(timeline.NewUtterance(0, 1, "X", "x"), timeline.NewUtterance(math.NaN(), 1, "X", "y")),
			record: "utterance",
		},
		{
			name:   "infinite bound",
			turns:  []timeline.Turn{{Start: 0, End: math.Inf(1), Speaker: "A"}},
			us:     utterances(timeline.NewUtterance(0, 1, "X", "x")),
			record: "turn",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := timeline.NewRegistry()
			_, err := timeline.Align(tc.turns, tc.us, reg, timeline.DefaultOptions())
			if !errors.Is(err, timeline.ErrMalformedInterval) {
				t.Fatalf("err = %v, want ErrMalformedInterval", err)
			}
			var mErr *timeline.MalformedIntervalError
			if !errors.As(err, &mErr) || mErr.Record != tc.record {
				t.Fatalf("err = %#v", err)
			}
			if tc.us[0].Participant != "X" {
				t.Fatalf("utterance mutated despite validation failure")
			}
			if reg.Len() != 0 {
				t.Fatalf("registry mutated despite validation failure: %v", reg.Codes())
			}
		})
	}
}

func TestAlignRejectsMissingMainTier(t *testing.T) {
	u := &timeline.Utterance{Start: 0, End: 1, Participant: "X", Tiers: map[string]string{"%mor": "n|dog"}}
	_, err := timeline.Align(nil, utterances(u), timeline.NewRegistry(), timeline.DefaultOptions())
	if !errors.Is(err, timeline.ErrMissingMainTier) {
		t.Fatalf("err = %v, want ErrMissingMainTier", err)
	}
}

func TestAlignNilRegistry(t *testing.T) {
	if _, err := timeline.Align(nil, nil, nil, timeline.DefaultOptions()); err == nil {
		t.Fatal("expected error for nil registry")
	}
}

func TestParseTieBreak(t *testing.T) {
	for input, want := range map[string]timeline.TieBreak{
		"":                 timeline.TieBreakNone,
		"none":             timeline.TieBreakNone,
		" Longest_Overlap": timeline.TieBreakLongestOverlap,
	} {
		got, err := timeline.ParseTieBreak(input)
		if err != nil || got != want {
			t.Fatalf("ParseTieBreak(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := timeline.ParseTieBreak("majority"); err == nil {
		t.Fatal("expected error for unknown tie break")
	}
}
