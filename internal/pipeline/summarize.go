package pipeline

import (
	"context"
	"strings"

	"kthgpt/internal/analysis"
	"kthgpt/internal/config"
	"kthgpt/internal/services"
	"kthgpt/internal/stage"
	"kthgpt/internal/transcript"
)

type summarizeStage struct {
	cfg        *config.Config
	summarizer Summarizer
}

func newSummarizeStage(cfg *config.Config, summarizer Summarizer) *summarizeStage {
	return &summarizeStage{cfg: cfg, summarizer: summarizer}
}

func (s *summarizeStage) Prepare(_ context.Context, work *stage.Work) error {
	if s.summarizer == nil {
		return services.Wrap(services.ErrConfiguration, "summarizing", "prepare", "summarizer is not configured", nil)
	}
	if strings.TrimSpace(work.Lecture.TranscriptPath) == "" {
		return services.Wrap(services.ErrValidation, "summarizing", "prepare", "lecture has no transcript", nil)
	}
	return nil
}

// Execute summarizes the transcript chunk by chunk. Progress is the 1-based
// chunk in flight, then one more step for the overview, kept below the
// completion marker for very long lectures.
func (s *summarizeStage) Execute(ctx context.Context, work *stage.Work) error {
	lang, err := stage.LectureLanguage(work.Lecture)
	if err != nil {
		return err
	}
	text, err := transcript.Read(work.Lecture.TranscriptPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "summarizing", "read transcript", "", err)
	}
	chunks := transcript.Chunk(text, s.cfg.Summary.ChunkWords)

	result, err := s.summarizer.Summarize(ctx, lang, chunks, func(ctx context.Context, step, _ int) error {
		return work.Advance(ctx, min(step, analysis.CompleteProgress-1))
	})
	if err != nil {
		return err
	}
	work.Lecture.SummaryText = result.SummaryText
	work.Lecture.Overview = result.Overview
	return nil
}

func (s *summarizeStage) HealthCheck(context.Context) stage.Health {
	const name = "summarize"
	if s.summarizer == nil {
		return stage.Unhealthy(name, "summarizer not configured")
	}
	return stage.Healthy(name)
}
