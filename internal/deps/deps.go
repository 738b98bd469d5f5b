package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"chatalign/internal/config"
)

// Requirement defines an external binary chatalign may run.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the configured diarization source needs.
// With a file source nothing is executed, so both are optional.
func Requirements(cfg *config.Config) []Requirement {
	source := config.SourceFile
	command := ""
	ffmpeg := "ffmpeg"
	if cfg != nil {
		source = cfg.Diarization.Source
		command = cfg.Diarization.Command
		ffmpeg = cfg.FFmpegBinary()
	}
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpeg,
			Description: "Converts recordings to 16 kHz WAV before diarization",
			Optional:    source == config.SourceFile,
		},
		{
			Name:        "Diarizer",
			Command:     command,
			Description: "Produces speaker turns from audio",
			Optional:    source != config.SourceCommand,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Command = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
