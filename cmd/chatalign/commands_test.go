package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chatalign/internal/align"
	"chatalign/internal/history"
	"chatalign/internal/testsupport"
)

func TestAlignCommandWritesFixedTranscript(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.addSession(t, "session01")

	stdout, _, err := runCLI(t, []string{"align", path}, env.configPath)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	requireContains(t, stdout, "Aligned session01.cha")
	requireContains(t, stdout, "Relabeled:   2")
	requireContains(t, stdout, "Added:       INV")
	requireContains(t, stdout, "overlaps no turn")

	fixed := testsupport.ReadFile(t, filepath.Join(env.dataDir, "session01_fixed.cha"))
	requireContains(t, fixed, "*INV:\thow about water ?")

	_, _, err = runCLI(t, []string{"align", path}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("second align err = %v", err)
	}
	if _, _, err := runCLI(t, []string{"align", "--overwrite", "--no-backup", path}, env.configPath); err != nil {
		t.Fatalf("align --overwrite: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.dataDir, "session01_fixed.cha.bak")); !os.IsNotExist(err) {
		t.Fatalf("backup written despite --no-backup: %v", err)
	}
}

func TestAlignCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.addSession(t, "session01")
	output := filepath.Join(env.dataDir, "out", "custom.cha")
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runCLI(t, []string{"align", "--json", "--tie-break", "longest_overlap", "-o", output, path}, env.configPath)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	var out align.Outcome
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if out.Status != history.StatusSucceeded || out.OutputPath != output || out.Result.Relabeled != 2 {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestAlignCommandRejectsBadFlags(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.addSession(t, "session01")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "tie break", args: []string{"align", "--tie-break", "coin", path}, want: "unknown tie break"},
		{name: "source", args: []string{"align", "--source", "magic", path}, want: "unknown diarization source"},
		{name: "arity", args: []string{"align"}, want: "arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args, env.configPath)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestBatchCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addSession(t, "a")
	env.addSession(t, "b")

	stdout, _, err := runCLI(t, []string{"batch", "--workers", "2", env.dataDir}, env.configPath)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	requireContains(t, stdout, "a.cha")
	requireContains(t, stdout, "b.cha")
	requireContains(t, stdout, "succeeded")

	testsupport.WriteFile(t, filepath.Join(env.dataDir, "c.cha"), sampleTranscript)
	_, _, err = runCLI(t, []string{"batch", "--overwrite", env.dataDir}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "1 of 3") {
		t.Fatalf("batch with missing turns err = %v", err)
	}
}

func TestHistoryCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.addSession(t, "session01")

	stdout, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, stdout, "No runs recorded")

	alignOut, _, err := runCLI(t, []string{"align", "--json", path}, env.configPath)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	var out align.Outcome
	if err := json.Unmarshal([]byte(alignOut), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}

	stdout, _, err = runCLI(t, []string{"history", "--status", "succeeded"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, stdout, out.RunID[:8])
	requireContains(t, stdout, "session01.cha")

	stdout, _, err = runCLI(t, []string{"history", "show", out.RunID[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, stdout, "Run "+out.RunID)
	requireContains(t, stdout, "unresolved_utterance")

	if _, _, err := runCLI(t, []string{"history", "show", "ffffffff-none"}, env.configPath); err == nil {
		t.Fatal("expected not found error")
	}
	if _, _, err := runCLI(t, []string{"history", "--status", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected unknown status error")
	}

	stdout, _, err = runCLI(t, []string{"history", "prune", "--days", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("history prune: %v", err)
	}
	requireContains(t, stdout, "Removed 0 runs")
}

func TestInspectCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.addSession(t, "session01")

	stdout, _, err := runCLI(t, []string{"inspect", path}, env.configPath)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	requireContains(t, stdout, "eng (English)")
	requireContains(t, stdout, "Target_Child")
	requireContains(t, stdout, "Turns: 2")
	requireContains(t, stdout, "Preview (nothing written)")
	requireContains(t, stdout, "unresolved_utterance:")

	if _, err := os.Stat(filepath.Join(env.dataDir, "session01_fixed.cha")); !os.IsNotExist(err) {
		t.Fatalf("inspect wrote output: %v", err)
	}
}

func TestInspectListsUndeclaredSpeakersInOrder(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.addSession(t, "session01")
	content := strings.NewReplacer(
		"*CHI:\tmore juice", "*ZED:\tmore juice",
		"*MOT:\tnobody here", "*ABE:\tnobody here",
	).Replace(sampleTranscript)
	testsupport.WriteFile(t, path, content)

	for i := 0; i < 5; i++ {
		stdout, _, err := runCLI(t, []string{"inspect", path}, env.configPath)
		if err != nil {
			t.Fatalf("inspect: %v", err)
		}
		abe, zed := strings.Index(stdout, "ABE"), strings.Index(stdout, "ZED")
		if abe < 0 || zed < 0 || abe > zed {
			t.Fatalf("undeclared rows out of order (ABE at %d, ZED at %d):\n%s", abe, zed, stdout)
		}
	}
}

func TestConfigCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, stdout, "Configuration valid")
	requireContains(t, stdout, "Diarization source: file")

	target := filepath.Join(t.TempDir(), "chatalign", "config.toml")
	stdout, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, stdout, "Wrote sample configuration")
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected existing config error")
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, stdout)
	}
	requireContains(t, stdout, "== Dependencies ==")
	requireContains(t, stdout, "Diarization:")
	requireContains(t, stdout, "turns files")
	requireContains(t, stdout, "none recorded")
}
