package testsupport

import (
	"context"
	"testing"

	"kthgpt/internal/config"
	"kthgpt/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewLecture creates a lecture for tests using the provided store.
func NewLecture(t testing.TB, st *store.Store, publicID, language string) *store.Lecture {
	t.Helper()

	lecture, err := st.CreateLecture(context.Background(), publicID, language, "")
	if err != nil {
		t.Fatalf("store.CreateLecture: %v", err)
	}
	return lecture
}

// NewSummarizedLecture creates a lecture that already carries a summary.
func NewSummarizedLecture(t testing.TB, st *store.Store, publicID, language, summary string) *store.Lecture {
	t.Helper()

	lecture := NewLecture(t, st, publicID, language)
	lecture.SummaryText = summary
	if err := st.UpdateLecture(context.Background(), lecture); err != nil {
		t.Fatalf("store.UpdateLecture: %v", err)
	}
	return lecture
}
