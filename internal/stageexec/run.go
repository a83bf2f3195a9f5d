package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"kthgpt/internal/logging"
	"kthgpt/internal/services"
	"kthgpt/internal/stage"
	"kthgpt/internal/store"
	"kthgpt/internal/textutil"
)

const maxFailureReason = 500

// Handler is the stage contract used by the execution helper.
type Handler interface {
	Prepare(context.Context, *stage.Work) error
	Execute(context.Context, *stage.Work) error
}

// Machine is the lifecycle surface the executor drives.
type Machine interface {
	stage.Tracker
	Enter(ctx context.Context, a *store.Analysis, state store.AnalysisState) (*store.Analysis, error)
	Complete(ctx context.Context, a *store.Analysis) (*store.Analysis, error)
	Fail(ctx context.Context, a *store.Analysis, reason string) (*store.Analysis, error)
}

// LectureWriter persists lecture fields a stage produced.
type LectureWriter interface {
	UpdateLecture(ctx context.Context, lecture *store.Lecture) error
}

// Options controls stage execution and attempt persistence behavior.
type Options struct {
	Logger     *slog.Logger
	Machine    Machine
	Lectures   LectureWriter
	Handler    Handler
	StageName  string
	Processing store.AnalysisState
	Lecture    *store.Lecture
	Analysis   *store.Analysis
}

// Run executes one stage against the attempt. An idle attempt is moved into
// the processing state first; an attempt already in that state resumes. On
// success the lecture is saved and the attempt returns to idle at 100. On
// failure the attempt moves to failure and the stage error is returned
// tagged services.ErrPipeline.
func Run(ctx context.Context, opts Options) (*store.Analysis, error) {
	if opts.Handler == nil {
		return nil, fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Machine == nil || opts.Lectures == nil {
		return nil, fmt.Errorf("stage %s: machine and lecture store are required", opts.StageName)
	}
	if opts.Lecture == nil || opts.Analysis == nil {
		return nil, fmt.Errorf("stage %s: lecture and analysis are required", opts.StageName)
	}

	stageCtx := services.WithStage(ctx, opts.StageName)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	attempt := opts.Analysis
	switch attempt.State {
	case opts.Processing:
	case store.StateIdle:
		entered, err := opts.Machine.Enter(stageCtx, attempt, opts.Processing)
		if err != nil {
			return nil, fmt.Errorf("persist processing transition: %w", err)
		}
		attempt = entered
	default:
		return nil, fmt.Errorf("stage %s: attempt %d is %s", opts.StageName, attempt.ID, attempt.State)
	}

	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_state", string(opts.Processing)),
		logging.Int("progress", attempt.Progress),
		logging.String("public_id", opts.Lecture.PublicID),
	)

	work := stage.NewWork(opts.Lecture, attempt, opts.Machine)
	if err := opts.Handler.Prepare(stageCtx, work); err != nil {
		return handleFailure(stageCtx, stageLogger, opts, work.Analysis, err)
	}
	if err := opts.Handler.Execute(stageCtx, work); err != nil {
		return handleFailure(stageCtx, stageLogger, opts, work.Analysis, err)
	}

	if err := opts.Lectures.UpdateLecture(stageCtx, work.Lecture); err != nil {
		return handleFailure(stageCtx, stageLogger, opts, work.Analysis, fmt.Errorf("persist stage result: %w", err))
	}
	done, err := opts.Machine.Complete(stageCtx, work.Analysis)
	if err != nil {
		return nil, fmt.Errorf("persist stage completion: %w", err)
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_state", string(done.State)),
		logging.Int("progress", done.Progress),
	)
	return done, nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, attempt *store.Analysis, stageErr error) (*store.Analysis, error) {
	message := "stage failed"
	if stageErr != nil {
		message = strings.TrimSpace(stageErr.Error())
	}
	message = textutil.Truncate(message, maxFailureReason)

	logging.ErrorWithContext(
		logger,
		"stage failed",
		"stage_failure",
		logging.String("resolved_state", string(store.StateFailure)),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)

	// The attempt must leave its working state even when ctx was cancelled.
	persistCtx := context.WithoutCancel(ctx)
	failed, err := opts.Machine.Fail(persistCtx, attempt, message)
	switch {
	case errors.Is(err, store.ErrStaleAnalysis):
		logging.WarnWithContext(logger, "attempt superseded before failure was recorded", "stage_failure_stale",
			logging.Int64(logging.FieldAnalysisID, attempt.ID))
	case err != nil:
		logger.Error("failed to persist stage failure", logging.Error(err))
	}

	if errors.Is(stageErr, services.ErrPipeline) {
		return failed, stageErr
	}
	return failed, fmt.Errorf("%w: %s: %w", services.ErrPipeline, opts.StageName, stageErr)
}
