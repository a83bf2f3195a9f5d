package stage

import (
	"context"
	"errors"
	"testing"

	"kthgpt/internal/language"
	"kthgpt/internal/services"
	"kthgpt/internal/store"
)

func TestLectureLanguage_Valid(t *testing.T) {
	lang, err := LectureLanguage(&store.Lecture{Language: "sv"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lang != language.Swedish {
		t.Fatalf("unexpected language: %q", lang)
	}
}

func TestLectureLanguage_Unsupported(t *testing.T) {
	_, err := LectureLanguage(&store.Lecture{Language: "de"})
	if !errors.Is(err, services.ErrUnsupportedLanguage) {
		t.Fatalf("expected unsupported language, got %v", err)
	}
}

func TestLectureLanguage_NilLecture(t *testing.T) {
	_, err := LectureLanguage(nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type recordingTracker struct {
	calls []int
}

func (r *recordingTracker) Step(ctx context.Context, a *store.Analysis) (*store.Analysis, error) {
	return r.Advance(ctx, a, a.Progress+1)
}

func (r *recordingTracker) Advance(_ context.Context, a *store.Analysis, progress int) (*store.Analysis, error) {
	r.calls = append(r.calls, progress)
	next := *a
	next.Progress = progress
	return &next, nil
}

func TestWorkTracksProgress(t *testing.T) {
	tracker := &recordingTracker{}
	work := NewWork(&store.Lecture{}, &store.Analysis{State: store.StateDownloading, Progress: 1}, tracker)

	if err := work.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := work.Advance(context.Background(), 2); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := work.Advance(context.Background(), 5); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if work.Analysis.Progress != 5 {
		t.Fatalf("expected progress 5, got %d", work.Analysis.Progress)
	}
	if len(tracker.calls) != 2 || tracker.calls[0] != 2 || tracker.calls[1] != 5 {
		t.Fatalf("unexpected tracker calls: %v", tracker.calls)
	}
}

func TestWorkWithoutTracker(t *testing.T) {
	work := NewWork(nil, &store.Analysis{}, nil)
	if err := work.Step(context.Background()); err == nil {
		t.Fatal("expected error without tracker")
	}
}

func TestNotReady(t *testing.T) {
	health := []Health{
		Healthy("download"),
		Unhealthy("transcribe", "transcriber not configured"),
		Healthy("summarize"),
	}
	got := NotReady(health)
	if len(got) != 1 || got[0].Name != "transcribe" || got[0].Ready {
		t.Fatalf("unexpected not-ready stages: %+v", got)
	}
	if NotReady([]Health{Healthy("download")}) != nil {
		t.Fatal("expected nil when every stage is ready")
	}
}
