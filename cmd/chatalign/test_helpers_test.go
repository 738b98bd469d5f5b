package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chatalign/internal/config"
	"chatalign/internal/testsupport"
)

const sampleTranscript = "@UTF8\n" +
	"@Begin\n" +
	"@Languages:\teng\n" +
	"@Participants:\tCHI Ruth Target_Child, MOT Mother\n" +
	"@ID:\teng|kids|CHI|2;6.||||Target_Child|||\n" +
	"@ID:\teng|kids|MOT|||||Mother|||\n" +
	"*CHI:\tmore juice . \x150_1400\x15\n" +
	"*MOT:\thow about water ? \x151600_2900\x15\n" +
	"*MOT:\tnobody here . \x155000_6000\x15\n" +
	"@End\n"

const sampleTurns = `{"segments":[
  {"start":0,"end":1.4,"speaker":"MOT"},
  {"start":1.6,"end":2.9,"speaker":"INV"}
]}`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	dataDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		dataDir:    filepath.Join(base, "data"),
	}
}

// addSession writes name.cha and name.turns.json into the data directory
// and returns the transcript path.
func (e *cliTestEnv) addSession(t *testing.T, name string) string {
	t.Helper()
	path := testsupport.WriteFile(t, filepath.Join(e.dataDir, name+".cha"), sampleTranscript)
	testsupport.WriteFile(t, filepath.Join(e.dataDir, name+".turns.json"), sampleTurns)
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nstate_dir = %q\nlog_dir = %q\nwork_dir = %q\n\n[diarization]\nsource = %q\n\n[logging]\nlevel = \"error\"\n",
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.WorkDir,
		cfg.Diarization.Source,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
