// Package summary condenses a lecture transcript into per-section summaries
// and an overall overview through the AI backend.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"kthgpt/internal/config"
	"kthgpt/internal/language"
	"kthgpt/internal/logging"
	"kthgpt/internal/prompts"
	"kthgpt/internal/services"
	"kthgpt/internal/services/llm"
)

// Generator is the AI backend surface the summarizer needs.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.Options) (string, error)
}

// Unit is one transcript chunk with the running context passed to the model.
type Unit struct {
	Transcript   string
	SummaryWords int
	Previous     string
}

// Result is the output of a summarization run.
type Result struct {
	ChunkSummaries []string
	SummaryText    string
	Overview       string
}

// ProgressFunc is called before each backend call with a 1-based step: one
// step per chunk followed by one for the overview. Returning an error aborts
// the run.
type ProgressFunc func(ctx context.Context, step, total int) error

// Summarizer drives chunk and overview prompts.
type Summarizer struct {
	backend       Generator
	policy        config.RetryPolicy
	summaryWords  int
	overviewWords int
	logger        *slog.Logger
}

// New constructs a Summarizer from summary settings.
func New(backend Generator, cfg *config.Config, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		backend:       backend,
		policy:        cfg.SummaryPolicy(),
		summaryWords:  cfg.Summary.SummaryWords,
		overviewWords: cfg.Summary.OverviewWords,
		logger:        logging.NewComponentLogger(logger, "summary"),
	}
}

// Steps returns how many progress steps Summarize reports for chunks pieces.
func Steps(chunks int) int {
	return chunks + 1
}

// Summarize condenses chunks in order. From the second chunk on, the summaries
// written so far are included in the prompt as context.
func (s *Summarizer) Summarize(ctx context.Context, lang language.Language, chunks []string, progress ProgressFunc) (Result, error) {
	if len(chunks) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "summarizing", "summarize", "transcript is empty", nil)
	}
	set, err := prompts.For(lang)
	if err != nil {
		return Result{}, err
	}
	total := Steps(len(chunks))
	correlation, _ := services.RequestIDFromContext(ctx)

	summaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := report(ctx, progress, i+1, total); err != nil {
			return Result{}, err
		}
		unit := Unit{
			Transcript:   chunk,
			SummaryWords: s.summaryWords,
			Previous:     strings.Join(summaries, "\n"),
		}
		prompt := set.ChunkSummary(prompts.ChunkInput{
			Previous:        unit.Previous,
			IncludePrevious: i > 0,
			Transcript:      unit.Transcript,
			MaxWords:        unit.SummaryWords,
		})
		text, err := s.backend.Generate(ctx, prompt, s.options(correlation, fmt.Sprintf("chunk-%d", i+1)))
		if err != nil {
			return Result{}, fmt.Errorf("summarize chunk %d of %d: %w", i+1, len(chunks), err)
		}
		summaries = append(summaries, strings.TrimSpace(text))
		s.logger.Debug("chunk summarized",
			logging.Int("chunk", i+1),
			logging.Int("chunks", len(chunks)),
		)
	}

	joined := strings.Join(summaries, "\n\n")
	if err := report(ctx, progress, total, total); err != nil {
		return Result{}, err
	}
	overview, err := s.backend.Generate(ctx, set.LectureSummary(joined, s.overviewWords), s.options(correlation, "overview"))
	if err != nil {
		return Result{}, fmt.Errorf("summarize lecture: %w", err)
	}
	return Result{
		ChunkSummaries: summaries,
		SummaryText:    joined,
		Overview:       strings.TrimSpace(overview),
	}, nil
}

func (s *Summarizer) options(correlation, suffix string) llm.Options {
	id := ""
	if correlation != "" {
		id = correlation + "-" + suffix
	}
	return llm.Options{
		TimeToLive:     s.policy.TimeToLive,
		MaxRetries:     s.policy.MaxRetries,
		RetryIntervals: s.policy.Intervals,
		CorrelationID:  id,
	}
}

func report(ctx context.Context, progress ProgressFunc, step, total int) error {
	if progress == nil {
		return nil
	}
	if err := progress(ctx, step, total); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("record summary progress: %w", err)
	}
	return nil
}
