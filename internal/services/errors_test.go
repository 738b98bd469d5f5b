package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"chatalign/internal/history"
	"chatalign/internal/services"
	"chatalign/internal/timeline"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "diarization", "command", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"diarization", "command", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRunStatusMapping(t *testing.T) {
	malformed := timeline.Turn{Start: 2, End: 1}.Validate(0)
	cases := []struct {
		name string
		err  error
		want history.Status
	}{
		{"nil", nil, history.StatusSucceeded},
		{"validation marker", services.Wrap(services.ErrValidation, "align", "parse", "bad", nil), history.StatusInvalid},
		{"not found", services.Wrap(services.ErrNotFound, "align", "turns", "missing", nil), history.StatusInvalid},
		{"classified", fmt.Errorf("align: %w", malformed), history.StatusInvalid},
		{"transient", services.Wrap(services.ErrTransient, "align", "write", "disk", errors.New("io")), history.StatusFailed},
		{"tool", services.Wrap(services.ErrExternalTool, "diarization", "run", "exit 1", nil), history.StatusFailed},
		{"cancelled", fmt.Errorf("run: %w", context.Canceled), history.StatusCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.RunStatus(tc.err); got != tc.want {
				t.Fatalf("RunStatus(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}
