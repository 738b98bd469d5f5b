package history

import (
	"time"

	"chatalign/internal/timeline"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusInvalid   Status = "invalid"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// AllStatuses lists statuses in display order.
var AllStatuses = []Status{StatusRunning, StatusSucceeded, StatusInvalid, StatusFailed, StatusCancelled}

// Run is one alignment of a transcript.
type Run struct {
	ID             string     `json:"id"`
	TranscriptPath string     `json:"transcript"`
	AudioPath      string     `json:"audio,omitempty"`
	TurnsPath      string     `json:"turns,omitempty"`
	OutputPath     string     `json:"output,omitempty"`
	Source         string     `json:"source,omitempty"`
	Status         Status     `json:"status"`
	Utterances     int        `json:"utterances"`
	Turns          int        `json:"turns"`
	Relabeled      int        `json:"relabeled"`
	Warnings       int        `json:"warnings"`
	Added          []string   `json:"added,omitempty"`
	ErrorMessage   string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary carries the counters recorded when a run succeeds.
type Summary struct {
	OutputPath string
	Utterances int
	Turns      int
	Relabeled  int
	Warnings   int
	Added      []string
}

// Diagnostic is a stored overlap warning.
type Diagnostic = timeline.OverlapWarning
