package chat_test

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"chatalign/internal/chat"
	"chatalign/internal/timeline"
)

const sample = "@UTF8\n" +
	"@Begin\n" +
	"@Languages:\teng\n" +
	"@Participants:\tCHI Ruth Target_Child, MOT Mother\n" +
	"@ID:\teng|kids|CHI|2;6.||||Target_Child|||\n" +
	"@ID:\teng|kids|MOT|||||Mother|||\n" +
	"@Media:\tsession1, audio\n" +
	"*CHI:\tmore juice . \x150_1400\x15\n" +
	"%mor:\tqn|more n|juice .\n" +
	"@Comment:\tspills cup\n" +
	"*MOT:\thow about\n" +
	"\twater ? \x151600_2900\x15\n" +
	"*MOT:\tuntimed line .\n" +
	"@End\n"

func TestParse(t *testing.T) {
	tr, err := chat.Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !tr.HasBegin || !tr.HasEnd {
		t.Fatalf("begin=%v end=%v", tr.HasBegin, tr.HasEnd)
	}
	if !slices.Equal(tr.Languages, []string{"eng"}) {
		t.Fatalf("languages = %v", tr.Languages)
	}
	if !slices.Equal(tr.Registry.Codes(), []string{"CHI", "MOT"}) {
		t.Fatalf("codes = %v", tr.Registry.Codes())
	}
	chi, _ := tr.Registry.Get("CHI")
	if chi.Name != "Ruth" || chi.Role != "Target_Child" || chi.Age != "2;6." || chi.Corpus != "kids" {
		t.Fatalf("CHI = %+v", chi)
	}
	mot, _ := tr.Registry.Get("MOT")
	if mot.Name != "" || mot.Role != "Mother" {
		t.Fatalf("MOT = %+v", mot)
	}

	if len(tr.Utterances) != 3 {
		t.Fatalf("utterances = %d", len(tr.Utterances))
	}
	u0 := tr.Utterances[0]
	if u0.Start != 0 || u0.End != 1.4 || u0.Text() != "more juice ." {
		t.Fatalf("u0 = %+v", u0)
	}
	if u0.Tiers["%mor"] != "qn|more n|juice ." {
		t.Fatalf("u0 tiers = %v", u0.Tiers)
	}
	u1 := tr.Utterances[1]
	if u1.Start != 1.6 || u1.End != 2.9 || u1.Text() != "how about water ?" {
		t.Fatalf("u1 = %+v", u1)
	}
	if u2 := tr.Utterances[2]; !math.IsNaN(u2.Start) || !math.IsNaN(u2.End) {
		t.Fatalf("untimed utterance bounds = %v %v", u2.Start, u2.End)
	}
	timed, untimed := tr.Timed()
	if len(timed) != 2 || !slices.Equal(untimed, []int{2}) {
		t.Fatalf("timed=%d untimed=%v", len(timed), untimed)
	}
	if counts := tr.UtteranceCounts(); counts["MOT"] != 2 || counts["CHI"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"tier before utterance": "@Begin\n%mor:\tn|dog\n",
		"bad id":                "@ID:\teng|corpus\n",
		"stray text":            "@Begin\nhello\n",
		"orphan continuation":   "\tcontinued\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := chat.Parse(strings.NewReader(input))
			var pErr *chat.ParseError
			if !errors.As(err, &pErr) {
				t.Fatalf("err = %v, want ParseError", err)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	tr, err := chat.Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var buf bytes.Buffer
	if err := chat.Write(&buf, tr); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "@UTF8\n" +
		"@Begin\n" +
		"@Languages:\teng\n" +
		"@Participants:\tCHI Ruth Target_Child, MOT Mother\n" +
		"@ID:\teng|kids|CHI|2;6.||||Target_Child|||\n" +
		"@ID:\teng|kids|MOT|||||Mother|||\n" +
		"@Media:\tsession1, audio\n" +
		"*CHI:\tmore juice . \x150_1400\x15\n" +
		"%mor:\tqn|more n|juice .\n" +
		"@Comment:\tspills cup\n" +
		"*MOT:\thow about water ? \x151600_2900\x15\n" +
		"*MOT:\tuntimed line .\n" +
		"@End\n"
	if got := buf.String(); got != want {
		t.Fatalf("round trip mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestWriteDeclaresAlignedSpeakers(t *testing.T) {
	tr, err := chat.Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	timed, _ := tr.Timed()
	turns := []timeline.Turn{
		{Start: 0, End: 1.5, Speaker: "SPEAKER_00"},
		{Start: 1.5, End: 3, Speaker: "SPEAKER_01"},
	}
	if _, err := timeline.Align(turns, timed, tr.Registry, timeline.DefaultOptions()); err != nil {
		t.Fatalf("Align: %v", err)
	}

	var buf bytes.Buffer
	if err := chat.Write(&buf, tr); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"@Participants:\tCHI Ruth Target_Child, MOT Mother, SPEAKER_00 SPEAKER Participant, SPEAKER_01 SPEAKER Participant\n",
		"@ID:\teng|corpus_name|SPEAKER_00|||||Participant||FIXME|\n",
		"*SPEAKER_00:\tmore juice . \x150_1400\x15\n",
		"*SPEAKER_01:\thow about water ? \x151600_2900\x15\n",
		"*MOT:\tuntimed line .\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteUsesRegistryCaseForLowercaseTurns(t *testing.T) {
	tr, err := chat.Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	timed, _ := tr.Timed()
	turns := []timeline.Turn{
		{Start: 0, End: 1.5, Speaker: "chi"},
		{Start: 1.5, End: 3, Speaker: "spk0"},
	}
	res, err := timeline.Align(turns, timed, tr.Registry, timeline.DefaultOptions())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if res.Relabeled != 1 {
		t.Fatalf("relabeled = %d, want 1", res.Relabeled)
	}

	var buf bytes.Buffer
	if err := chat.Write(&buf, tr); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"SPK0 SPEAKER Participant",
		"*CHI:\tmore juice . \x150_1400\x15\n",
		"*SPK0:\thow about water ? \x151600_2900\x15\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "*spk0:") || strings.Contains(out, "*chi:") {
		t.Fatalf("lowercase speaker line written:\n%s", out)
	}
}

func TestWriteAddsMissingBeginAndEnd(t *testing.T) {
	tr, err := chat.Parse(strings.NewReader("@Languages:\teng\n*CHI:\thi . \x15100_200\x15\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tr.HasBegin || tr.HasEnd {
		t.Fatal("markers reported present")
	}
	tr.Registry.EnsurePlaceholder("CHI", "eng", "")
	var buf bytes.Buffer
	if err := chat.Write(&buf, tr); err != nil {
		t.Fatalf("Write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "@UTF8" || lines[1] != "@Begin" || lines[len(lines)-1] != "@End" {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[3], "@Participants:") {
		t.Fatalf("participants not written after leading headers: %q", lines)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cha")
	if err := os.WriteFile(path, []byte("\ufeff"+sample), 0o644); err != nil {
		t.Fatal(err)
	}
	tr, err := chat.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(tr.Utterances) != 3 {
		t.Fatalf("utterances = %d", len(tr.Utterances))
	}
	if _, err := chat.ParseFile(filepath.Join(t.TempDir(), "missing.cha")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFixedPath(t *testing.T) {
	if got := chat.FixedPath("/data/session.cha"); got != "/data/session_fixed.cha" {
		t.Fatalf("FixedPath = %q", got)
	}
	if got := chat.FixedPath("notes"); got != "notes_fixed.cha" {
		t.Fatalf("FixedPath = %q", got)
	}
	if !chat.IsFixedPath("/data/session_fixed.cha") || chat.IsFixedPath("/data/session.cha") {
		t.Fatal("IsFixedPath mismatch")
	}
}
