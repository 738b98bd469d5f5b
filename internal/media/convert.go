// Package media prepares recordings for diarizers that expect WAV input.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"chatalign/internal/services"
)

// FFmpegCommand is the default ffmpeg executable.
const FFmpegCommand = "ffmpeg"

// Runner executes name with args.
type Runner func(ctx context.Context, name string, args ...string) error

// Converter turns non-WAV recordings into mono 16 kHz PCM WAV files in a
// work directory.
type Converter struct {
	ffmpegBinary string
	workDir      string
	runner       Runner
}

// NewConverter creates a converter writing into workDir.
func NewConverter(ffmpegBinary, workDir string) *Converter {
	if ffmpegBinary == "" {
		ffmpegBinary = FFmpegCommand
	}
	return &Converter{ffmpegBinary: ffmpegBinary, workDir: workDir}
}

// WithRunner sets a custom command runner (for testing).
func (c *Converter) WithRunner(runner Runner) {
	c.runner = runner
}

// IsWAV reports whether path already has a .wav extension.
func IsWAV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// Prepare returns a WAV path for source. WAV input is returned unchanged with
// converted false. Otherwise the audio is converted to a new file that never
// overwrites an existing one (name.wav, name_1.wav, ...); the caller removes
// it when converted is true.
func (c *Converter) Prepare(ctx context.Context, source string) (path string, converted bool, err error) {
	if IsWAV(source) {
		return source, false, nil
	}
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, services.Wrap(services.ErrNotFound, "media", "convert", source, err)
		}
		return "", false, fmt.Errorf("stat %s: %w", source, err)
	}

	dir := c.workDir
	if dir == "" {
		dir = filepath.Dir(source)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("ensure work dir: %w", err)
	}
	dest, err := reserve(dir, strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)))
	if err != nil {
		return "", false, err
	}

	if err := c.run(ctx, c.ffmpegBinary, BuildArgs(source, dest)...); err != nil {
		_ = os.Remove(dest)
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", false, services.Wrap(services.ErrExternalTool, "media", "ffmpeg", filepath.Base(source), err)
	}
	return dest, true, nil
}

// BuildArgs returns the ffmpeg arguments converting source to dest.
func BuildArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}

// reserve creates an empty name.wav (or name_N.wav) in dir so concurrent
// conversions never pick the same destination.
func reserve(dir, name string) (string, error) {
	for n := 0; n < 10000; n++ {
		candidate := name + ".wav"
		if n > 0 {
			candidate = name + "_" + strconv.Itoa(n) + ".wav"
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reserve %s: %w", path, err)
		}
		_ = f.Close()
		return path, nil
	}
	return "", fmt.Errorf("no free wav name for %s in %s", name, dir)
}

func (c *Converter) run(ctx context.Context, name string, args ...string) error {
	if c.runner != nil {
		return c.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
