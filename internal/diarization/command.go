package diarization

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"chatalign/internal/logging"
	"chatalign/internal/services"
	"chatalign/internal/timeline"
)

// CommandRunner executes name with args and env and returns its stdout.
type CommandRunner func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)

// CommandSource runs an external diarizer and reads the turns it writes.
//
// Args may reference {audio}, {output}, {model}, {hf_token}, {num_speakers}
// and {language}. An argument that is exactly an optional placeholder with no
// value is dropped together with the flag before it. When the command leaves
// {output} empty, its stdout is parsed as JSON instead.
type CommandSource struct {
	Command     string
	Args        []string
	Format      string
	Model       string
	HFToken     string
	NumSpeakers int
	WorkDir     string
	Timeout     time.Duration
	Logger      *slog.Logger

	runner CommandRunner
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *CommandSource) WithCommandRunner(runner CommandRunner) {
	s.runner = runner
}

func (s *CommandSource) Name() string { return "command" }

// Turns implements Source.
func (s *CommandSource) Turns(ctx context.Context, audioPath string) ([]timeline.Turn, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "diarization", "command", "audio path required", nil)
	}
	format, err := ParseFormat(s.Format)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "diarization", "command", "output format", err)
	}

	workDir := s.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure work dir: %w", err)
	}
	scratch, err := os.MkdirTemp(workDir, "diarize-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	output := filepath.Join(scratch, base+".turns."+string(format))
	values := map[string]string{
		"{audio}":        audioPath,
		"{output}":       output,
		"{model}":        s.Model,
		"{hf_token}":     s.HFToken,
		"{num_speakers}": "",
		"{language}":     LanguageFromContext(ctx),
	}
	if s.NumSpeakers > 0 {
		values["{num_speakers}"] = strconv.Itoa(s.NumSpeakers)
	}
	args := expandArgs(s.Args, values)

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	logger := logging.NewComponentLogger(s.Logger, "diarization")
	logger.Debug("running diarizer",
		logging.String("command", s.Command),
		logging.Strings("args", redact(args, s.HFToken)),
	)
	started := time.Now()
	stdout, runErr := s.run(ctx, s.env(), s.Command, args...)
	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "diarization", "command",
				fmt.Sprintf("%s exceeded %s", s.Command, s.Timeout), runErr)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrExternalTool, "diarization", "command", s.Command,
			errors.New(redactString(runErr.Error(), s.HFToken)))
	}

	var turns []timeline.Turn
	if info, statErr := os.Stat(output); statErr == nil && info.Size() > 0 {
		turns, err = LoadFile(output)
	} else if len(bytes.TrimSpace(stdout)) > 0 {
		turns, err = Decode(bytes.NewReader(stdout), FormatJSON)
		if err != nil {
			err = services.Wrap(services.ErrExternalTool, "diarization", "command", "decode stdout", err)
		}
	} else {
		err = services.Wrap(services.ErrExternalTool, "diarization", "command",
			fmt.Sprintf("%s produced no turns", s.Command), nil)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("diarizer finished",
		logging.Int("turns", len(turns)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return turns, nil
}

func (s *CommandSource) env() []string {
	env := os.Environ()
	if s.HFToken != "" {
		env = append(env, "HF_TOKEN="+s.HFToken, "HUGGING_FACE_HUB_TOKEN="+s.HFToken)
	}
	// Torch 2.6 defaults torch.load to weights_only, which breaks pyannote checkpoints.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		env = append(env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	return env
}

func (s *CommandSource) run(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	if s.runner != nil {
		return s.runner(ctx, env, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

var optionalPlaceholders = map[string]bool{
	"{hf_token}":     true,
	"{num_speakers}": true,
	"{language}":     true,
	"{model}":        true,
}

func expandArgs(args []string, values map[string]string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if optionalPlaceholders[arg] && values[arg] == "" {
			if n := len(out); n > 0 && strings.HasPrefix(out[n-1], "-") {
				out = out[:n-1]
			}
			continue
		}
		expanded := arg
		for key, value := range values {
			expanded = strings.ReplaceAll(expanded, key, value)
		}
		out = append(out, expanded)
	}
	return out
}

func redact(args []string, secret string) []string {
	if secret == "" {
		return args
	}
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = redactString(arg, secret)
	}
	return out
}

func redactString(value, secret string) string {
	if secret == "" {
		return value
	}
	return strings.ReplaceAll(value, secret, "[redacted]")
}
