package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"kthgpt/internal/analysis"
	"kthgpt/internal/config"
	"kthgpt/internal/jobs"
	"kthgpt/internal/language"
	"kthgpt/internal/logging"
	"kthgpt/internal/media"
	"kthgpt/internal/services"
	"kthgpt/internal/stage"
	"kthgpt/internal/stageexec"
	"kthgpt/internal/store"
	"kthgpt/internal/summary"
	"kthgpt/internal/transcript"
)

// Summarizer condenses transcript chunks. *summary.Summarizer implements it.
type Summarizer interface {
	Summarize(ctx context.Context, lang language.Language, chunks []string, progress summary.ProgressFunc) (summary.Result, error)
}

// Dependencies wires the orchestrator's collaborators.
type Dependencies struct {
	Config      *config.Config
	Store       *store.Store
	Dispatcher  jobs.Dispatcher
	Resolver    media.Resolver
	Downloader  media.Downloader
	Prober      Prober
	Transcriber transcript.Transcriber
	Summarizer  Summarizer
	Logger      *slog.Logger
}

type stageEntry struct {
	name       string
	processing store.AnalysisState
	handler    stage.Handler
	next       jobs.Kind
}

// Orchestrator starts lecture processing and runs stage jobs.
type Orchestrator struct {
	store      *store.Store
	machine    *analysis.Machine
	dispatcher jobs.Dispatcher
	stages     map[jobs.Kind]stageEntry
	logger     *slog.Logger
}

// New validates deps and builds an Orchestrator.
func New(deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("pipeline: config is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case deps.Dispatcher == nil:
		return nil, errors.New("pipeline: dispatcher is required")
	}
	logger := logging.NewComponentLogger(deps.Logger, "pipeline")
	o := &Orchestrator{
		store:      deps.Store,
		machine:    analysis.NewMachine(deps.Store),
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
	o.stages = map[jobs.Kind]stageEntry{
		jobs.KindDownload: {
			name:       "download",
			processing: store.StateDownloading,
			handler:    newDownloadStage(deps.Config, deps.Resolver, deps.Downloader, deps.Prober),
			next:       jobs.KindTranscribe,
		},
		jobs.KindTranscribe: {
			name:       "transcribe",
			processing: store.StateTranscribing,
			handler:    newTranscribeStage(deps.Config, deps.Transcriber),
			next:       jobs.KindSummarize,
		},
		jobs.KindSummarize: {
			name:       "summarize",
			processing: store.StateSummarizing,
			handler:    newSummarizeStage(deps.Config, deps.Summarizer),
		},
	}
	return o, nil
}

// Machine exposes the lifecycle rules the orchestrator applies.
func (o *Orchestrator) Machine() *analysis.Machine {
	return o.machine
}

// StartProcessing opens a new attempt for lecture and dispatches its
// download job. The attempt is failed when dispatch fails.
func (o *Orchestrator) StartProcessing(ctx context.Context, lecture *store.Lecture) (*store.Analysis, error) {
	attempt, err := o.machine.Start(ctx, lecture)
	if err != nil {
		return nil, err
	}
	ctx = withAttempt(ctx, lecture, attempt)
	logger := logging.WithContext(ctx, o.logger)

	desc := jobs.Descriptor{Kind: jobs.KindDownload, LectureID: lecture.ID, AnalysisID: attempt.ID}
	if err := o.dispatcher.Enqueue(ctx, desc); err != nil {
		return o.failDispatch(ctx, logger, attempt, desc.Kind, err)
	}
	logger.Info("processing started",
		logging.String(logging.FieldEventType, "processing_started"),
		logging.String("public_id", lecture.PublicID),
		logging.String("language", lecture.Language),
	)
	return attempt, nil
}

// CurrentState reports the lecture's latest attempt.
func (o *Orchestrator) CurrentState(ctx context.Context, lecture *store.Lecture) (analysis.Snapshot, error) {
	if lecture == nil {
		return analysis.Snapshot{}, services.Wrap(services.ErrValidation, "pipeline", "current state", "lecture is required", nil)
	}
	return o.machine.Snapshot(ctx, lecture.ID)
}

// Run executes the stage a claimed job names. Jobs whose attempt was
// superseded, already failed, or is in another stage are skipped without
// error so they are acknowledged. An idle attempt only accepts the job for
// the stage after the one it last completed, so redelivered jobs do not rerun.
func (o *Orchestrator) Run(ctx context.Context, desc jobs.Descriptor) error {
	entry, ok := o.stages[desc.Kind]
	if !ok {
		return services.Wrap(services.ErrValidation, "pipeline", "run", fmt.Sprintf("unknown job kind %q", desc.Kind), nil)
	}
	lecture, err := o.store.GetLecture(ctx, desc.LectureID)
	if err != nil {
		return fmt.Errorf("load lecture %d: %w", desc.LectureID, err)
	}
	if lecture == nil {
		return services.Wrap(services.ErrNotFound, "pipeline", "run", fmt.Sprintf("lecture %d", desc.LectureID), nil)
	}
	attempt, err := o.store.GetAnalysis(ctx, desc.AnalysisID)
	if err != nil {
		return fmt.Errorf("load analysis %d: %w", desc.AnalysisID, err)
	}
	if attempt == nil || attempt.LectureID != lecture.ID {
		return services.Wrap(services.ErrNotFound, "pipeline", "run", fmt.Sprintf("analysis %d", desc.AnalysisID), nil)
	}

	ctx = withAttempt(ctx, lecture, attempt)
	logger := logging.WithContext(ctx, o.logger)

	current, latest, err := o.machine.Current(ctx, attempt)
	if err != nil {
		return err
	}
	if !latest {
		logger.Info("skipping job for superseded attempt",
			logging.String(logging.FieldEventType, "job_skipped"),
			logging.String("job_kind", string(desc.Kind)),
		)
		return nil
	}
	if current.State != store.StateIdle && current.State != entry.processing {
		logging.WarnWithContext(logger, "skipping job for attempt in another state", "job_skipped",
			logging.String("job_kind", string(desc.Kind)),
			logging.String("state", string(current.State)),
			logging.String(logging.FieldImpact, "job acknowledged without running"),
		)
		return nil
	}
	if current.State == store.StateIdle {
		if next, ok := analysis.NextStage(current.CompletedStage); !ok || next != entry.processing {
			logger.Info("stage already completed",
				logging.String(logging.FieldEventType, "job_skipped"),
				logging.String("job_kind", string(desc.Kind)),
				logging.String("completed_stage", string(current.CompletedStage)),
			)
			return nil
		}
	}

	done, err := stageexec.Run(ctx, stageexec.Options{
		Logger:     o.logger,
		Machine:    o.machine,
		Lectures:   o.store,
		Handler:    entry.handler,
		StageName:  entry.name,
		Processing: entry.processing,
		Lecture:    lecture,
		Analysis:   current,
	})
	if err != nil {
		return err
	}
	if entry.next == "" {
		logger.Info("lecture processed",
			logging.String(logging.FieldEventType, "processing_complete"),
			logging.String("public_id", lecture.PublicID),
		)
		return nil
	}

	next := jobs.Descriptor{Kind: entry.next, LectureID: lecture.ID, AnalysisID: done.ID}
	if err := o.dispatcher.Enqueue(ctx, next); err != nil {
		_, dispatchErr := o.failDispatch(ctx, logger, done, next.Kind, err)
		return dispatchErr
	}
	return nil
}

// HealthCheck reports the readiness of every stage in pipeline order.
func (o *Orchestrator) HealthCheck(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(jobs.Kinds))
	for _, kind := range jobs.Kinds {
		out = append(out, o.stages[kind].handler.HealthCheck(ctx))
	}
	return out
}

func (o *Orchestrator) failDispatch(ctx context.Context, logger *slog.Logger, attempt *store.Analysis, kind jobs.Kind, cause error) (*store.Analysis, error) {
	reason := fmt.Sprintf("dispatch %s job: %v", kind, cause)
	logging.ErrorWithContext(logger, "job dispatch failed", "dispatch_failure",
		logging.String("job_kind", string(kind)),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "check the dispatch backend"),
	)
	if _, err := o.machine.Fail(context.WithoutCancel(ctx), attempt, reason); err != nil {
		logger.Error("failed to persist dispatch failure", logging.Error(err))
	}
	return nil, services.Wrap(services.ErrPipeline, "pipeline", "dispatch", string(kind), cause)
}

func withAttempt(ctx context.Context, lecture *store.Lecture, attempt *store.Analysis) context.Context {
	ctx = services.WithLectureID(ctx, strconv.FormatInt(lecture.ID, 10))
	return services.WithAnalysisID(ctx, attempt.ID)
}
