package align_test

import (
	"path/filepath"
	"testing"

	"chatalign/internal/align"
	"chatalign/internal/testsupport"
)

func TestDiscoverPairs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"a.cha", "a.mp3", "a.wav", "a.turns.rttm",
		"b.CHA", "b.turns.json",
		"b_fixed.cha",
		"c.cha",
		"notes.txt",
	} {
		testsupport.WriteFile(t, filepath.Join(dir, name), "x")
	}
	testsupport.WriteFile(t, filepath.Join(dir, "nested", "d.cha"), "x")

	reqs, err := align.DiscoverPairs(dir)
	if err != nil {
		t.Fatalf("DiscoverPairs: %v", err)
	}
	want := []align.Request{
		{TranscriptPath: filepath.Join(dir, "a.cha"), AudioPath: filepath.Join(dir, "a.wav"), TurnsPath: filepath.Join(dir, "a.turns.rttm")},
		{TranscriptPath: filepath.Join(dir, "b.CHA"), TurnsPath: filepath.Join(dir, "b.turns.json")},
		{TranscriptPath: filepath.Join(dir, "c.cha")},
	}
	if len(reqs) != len(want) {
		t.Fatalf("requests = %+v", reqs)
	}
	for i := range want {
		if reqs[i] != want[i] {
			t.Fatalf("request %d = %+v, want %+v", i, reqs[i], want[i])
		}
	}
}

func TestDiscoverPairsMissingDir(t *testing.T) {
	if _, err := align.DiscoverPairs(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error")
	}
}
