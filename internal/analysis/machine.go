package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kthgpt/internal/services"
	"kthgpt/internal/store"
)

// ErrInvalidTransition is returned when a move breaks the lifecycle rules.
var ErrInvalidTransition = errors.New("invalid analysis transition")

// Repository is the persistence the Machine needs. *store.Store implements it.
type Repository interface {
	BeginAnalysis(ctx context.Context, lectureID int64, state store.AnalysisState, progress int) (*store.Analysis, error)
	TransitionAnalysis(ctx context.Context, a *store.Analysis, next store.AnalysisState, progress int, reason string) (*store.Analysis, error)
	CurrentAnalysis(ctx context.Context, lectureID int64) (*store.Analysis, error)
}

// Snapshot is the externally visible state of a lecture.
type Snapshot struct {
	AnalysisID    int64
	State         store.AnalysisState
	Progress      int
	FailureReason string
}

// Machine applies lifecycle rules to analysis attempts.
type Machine struct {
	repo Repository
}

// NewMachine constructs a Machine over repo.
func NewMachine(repo Repository) *Machine {
	return &Machine{repo: repo}
}

// Start opens a new attempt for the lecture in downloading at progress 1.
// Returns store.ErrAttemptActive (tagged services.ErrConflict) when one is
// already running.
func (m *Machine) Start(ctx context.Context, lecture *store.Lecture) (*store.Analysis, error) {
	if lecture == nil {
		return nil, services.Wrap(services.ErrValidation, "analysis", "start", "lecture is required", nil)
	}
	a, err := m.repo.BeginAnalysis(ctx, lecture.ID, store.StateDownloading, Baseline(store.StateDownloading))
	if errors.Is(err, store.ErrAttemptActive) {
		return nil, fmt.Errorf("%w: %w", services.ErrConflict, err)
	}
	if err != nil {
		return nil, fmt.Errorf("start analysis: %w", err)
	}
	return a, nil
}

// Step increments progress by one within the current working state.
func (m *Machine) Step(ctx context.Context, a *store.Analysis) (*store.Analysis, error) {
	if a == nil {
		return nil, errNilAnalysis
	}
	return m.Advance(ctx, a, a.Progress+1)
}

// Advance sets progress within the current working state. Progress never
// decreases.
func (m *Machine) Advance(ctx context.Context, a *store.Analysis, progress int) (*store.Analysis, error) {
	if a == nil {
		return nil, errNilAnalysis
	}
	if !IsActive(a.State) {
		return nil, fmt.Errorf("%w: progress on %s attempt", ErrInvalidTransition, a.State)
	}
	if progress < a.Progress {
		return nil, fmt.Errorf("%w: progress %d below %d", ErrInvalidTransition, progress, a.Progress)
	}
	if progress >= CompleteProgress {
		return nil, fmt.Errorf("%w: progress %d reserved for completion", ErrInvalidTransition, progress)
	}
	if progress == a.Progress {
		return a, nil
	}
	return m.repo.TransitionAnalysis(ctx, a, a.State, progress, "")
}

// Enter moves an idle attempt into the next working state at its baseline.
func (m *Machine) Enter(ctx context.Context, a *store.Analysis, state store.AnalysisState) (*store.Analysis, error) {
	if a == nil {
		return nil, errNilAnalysis
	}
	if a.State != store.StateIdle || !IsActive(state) || !CanTransition(a.State, state) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.State, state)
	}
	return m.repo.TransitionAnalysis(ctx, a, state, Baseline(state), "")
}

// Complete finishes the current working state, leaving the attempt idle at
// progress 100.
func (m *Machine) Complete(ctx context.Context, a *store.Analysis) (*store.Analysis, error) {
	if a == nil {
		return nil, errNilAnalysis
	}
	if !IsActive(a.State) {
		return nil, fmt.Errorf("%w: complete from %s", ErrInvalidTransition, a.State)
	}
	return m.repo.TransitionAnalysis(ctx, a, store.StateIdle, CompleteProgress, "")
}

// Fail moves the attempt to failure with reason. Progress is kept.
func (m *Machine) Fail(ctx context.Context, a *store.Analysis, reason string) (*store.Analysis, error) {
	if a == nil {
		return nil, errNilAnalysis
	}
	if !CanTransition(a.State, store.StateFailure) {
		return nil, fmt.Errorf("%w: fail from %s", ErrInvalidTransition, a.State)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "processing failed"
	}
	return m.repo.TransitionAnalysis(ctx, a, store.StateFailure, a.Progress, reason)
}

// Snapshot reports the lecture's current state. A lecture that was never
// processed is idle at progress 0.
func (m *Machine) Snapshot(ctx context.Context, lectureID int64) (Snapshot, error) {
	a, err := m.repo.CurrentAnalysis(ctx, lectureID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	if a == nil {
		return Snapshot{State: store.StateIdle}, nil
	}
	return Snapshot{
		AnalysisID:    a.ID,
		State:         a.State,
		Progress:      a.Progress,
		FailureReason: a.FailureReason,
	}, nil
}

// Current reloads a's lecture and reports whether a is still its latest
// attempt, returning the fresh row when it is.
func (m *Machine) Current(ctx context.Context, a *store.Analysis) (*store.Analysis, bool, error) {
	if a == nil {
		return nil, false, errNilAnalysis
	}
	latest, err := m.repo.CurrentAnalysis(ctx, a.LectureID)
	if err != nil {
		return nil, false, fmt.Errorf("current analysis: %w", err)
	}
	if latest == nil || latest.ID != a.ID {
		return nil, false, nil
	}
	return latest, true, nil
}

var errNilAnalysis = errors.New("analysis is required")
