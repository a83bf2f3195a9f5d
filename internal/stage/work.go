package stage

import (
	"context"
	"errors"

	"kthgpt/internal/store"
)

// Tracker records progress for the attempt a stage is working on.
// *analysis.Machine implements it.
type Tracker interface {
	Step(ctx context.Context, a *store.Analysis) (*store.Analysis, error)
	Advance(ctx context.Context, a *store.Analysis, progress int) (*store.Analysis, error)
}

// Work is the unit a stage handler operates on. Handlers mutate Lecture
// fields; the executor persists them once the stage succeeds.
type Work struct {
	Lecture  *store.Lecture
	Analysis *store.Analysis

	tracker Tracker
}

// NewWork binds a lecture and its running attempt to a progress tracker.
func NewWork(lecture *store.Lecture, attempt *store.Analysis, tracker Tracker) *Work {
	return &Work{Lecture: lecture, Analysis: attempt, tracker: tracker}
}

// Step bumps progress by one.
func (w *Work) Step(ctx context.Context) error {
	if w.tracker == nil {
		return errNoTracker
	}
	next, err := w.tracker.Step(ctx, w.Analysis)
	if err != nil {
		return err
	}
	w.Analysis = next
	return nil
}

// Advance moves progress to value. Lower values are ignored.
func (w *Work) Advance(ctx context.Context, value int) error {
	if w.tracker == nil {
		return errNoTracker
	}
	if w.Analysis != nil && value <= w.Analysis.Progress {
		return nil
	}
	next, err := w.tracker.Advance(ctx, w.Analysis, value)
	if err != nil {
		return err
	}
	w.Analysis = next
	return nil
}

var errNoTracker = errors.New("stage work has no progress tracker")
