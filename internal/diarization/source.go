package diarization

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"chatalign/internal/config"
	"chatalign/internal/timeline"
)

// Source produces the diarization turns for one audio file.
type Source interface {
	Turns(ctx context.Context, audioPath string) ([]timeline.Turn, error)
	Name() string
}

// NewSource builds the source selected by cfg. A non-empty turnsPath always
// selects a FileSource reading that path.
func NewSource(cfg *config.Config, turnsPath string, logger *slog.Logger) (Source, error) {
	if turnsPath != "" {
		return &FileSource{Path: turnsPath}, nil
	}
	if cfg == nil {
		return &FileSource{}, nil
	}
	d := cfg.Diarization
	switch d.Source {
	case config.SourceFile, "":
		return &FileSource{}, nil
	case config.SourceCommand:
		return &CommandSource{
			Command:     d.Command,
			Args:        d.Args,
			Format:      d.OutputFormat,
			Model:       d.Model,
			HFToken:     d.HFToken,
			NumSpeakers: d.NumSpeakers,
			WorkDir:     cfg.Paths.WorkDir,
			Timeout:     time.Duration(cfg.DiarizationTimeout()) * time.Second,
			Logger:      logger,
		}, nil
	case config.SourceService:
		return &HTTPSource{
			BaseURL:     d.ServiceURL,
			NumSpeakers: d.NumSpeakers,
			Timeout:     time.Duration(cfg.DiarizationTimeout()) * time.Second,
		}, nil
	default:
		return nil, fmt.Errorf("unknown diarization source %q", d.Source)
	}
}

// NeedsAudio reports whether src reads the audio itself rather than a
// previously written turns file.
func NeedsAudio(src Source) bool {
	switch src.(type) {
	case *CommandSource, *HTTPSource:
		return true
	default:
		return false
	}
}

// SortTurns orders turns by start time. Turns with equal starts keep their
// input order.
func SortTurns(turns []timeline.Turn) {
	slices.SortStableFunc(turns, func(a, b timeline.Turn) int {
		return cmp.Compare(a.Start, b.Start)
	})
}

type languageKey struct{}

// WithLanguage attaches an ISO 639-1 language hint for diarizers that accept one.
func WithLanguage(ctx context.Context, code string) context.Context {
	if code == "" {
		return ctx
	}
	return context.WithValue(ctx, languageKey{}, code)
}

// LanguageFromContext returns the language hint set by WithLanguage.
func LanguageFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	code, _ := ctx.Value(languageKey{}).(string)
	return code
}
