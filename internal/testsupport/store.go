package testsupport

import (
	"context"
	"testing"

	"chatalign/internal/config"
	"chatalign/internal/history"
)

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// BeginRun inserts a running entry for transcript.
func BeginRun(t testing.TB, store *history.Store, transcript string) *history.Run {
	t.Helper()

	run := &history.Run{TranscriptPath: transcript}
	if err := store.BeginRun(context.Background(), run); err != nil {
		t.Fatalf("store.BeginRun: %v", err)
	}
	return run
}
