package summary_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kthgpt/internal/language"
	"kthgpt/internal/services"
	"kthgpt/internal/services/llm"
	"kthgpt/internal/summary"
	"kthgpt/internal/testsupport"
)

type scriptedGenerator struct {
	prompts []string
	opts    []llm.Options
	failAt  int
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string, opts llm.Options) (string, error) {
	g.prompts = append(g.prompts, prompt)
	g.opts = append(g.opts, opts)
	if g.failAt > 0 && len(g.prompts) == g.failAt {
		return "", &llm.BackendError{StatusCode: 500, Attempts: 4}
	}
	return fmt.Sprintf("summary %d", len(g.prompts)), nil
}

func TestSummarizeIncludesPreviousFromSecondChunk(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gen := &scriptedGenerator{}
	s := summary.New(gen, cfg, nil)

	var steps []int
	ctx := services.WithRequestID(context.Background(), "job-7")
	result, err := s.Summarize(ctx, language.English, []string{"alpha part", "beta part", "gamma part"}, func(_ context.Context, step, total int) error {
		assert.Equal(t, 4, total)
		assert.Len(t, gen.prompts, step-1, "progress must be recorded before the call")
		steps = append(steps, step)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, steps)
	require.Len(t, gen.prompts, 4)
	assert.NotContains(t, gen.prompts[0], "previously covered")
	assert.Contains(t, gen.prompts[1], "previously covered")
	assert.Contains(t, gen.prompts[1], "summary 1")
	assert.Contains(t, gen.prompts[2], "summary 1\nsummary 2")
	assert.Contains(t, gen.prompts[3], "summary 1\n\nsummary 2\n\nsummary 3")

	assert.Equal(t, []string{"summary 1", "summary 2", "summary 3"}, result.ChunkSummaries)
	assert.Equal(t, "summary 4", result.Overview)
	assert.Equal(t, "job-7-chunk-1", gen.opts[0].CorrelationID)
	assert.Equal(t, "job-7-overview", gen.opts[3].CorrelationID)
	assert.Equal(t, cfg.Summary.MaxRetries, gen.opts[0].MaxRetries)
	assert.Contains(t, gen.prompts[0], fmt.Sprintf("no more than %d words", cfg.Summary.SummaryWords))
}

func TestSummarizeSwedishPrompts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gen := &scriptedGenerator{}
	s := summary.New(gen, cfg, nil)

	_, err := s.Summarize(context.Background(), language.Swedish, []string{"ett", "två"}, nil)
	require.NoError(t, err)
	require.Len(t, gen.prompts, 3)
	assert.True(t, strings.Contains(gen.prompts[1], "hittills"))
}

func TestSummarizeStopsOnBackendFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gen := &scriptedGenerator{failAt: 2}
	s := summary.New(gen, cfg, nil)

	_, err := s.Summarize(context.Background(), language.English, []string{"a", "b", "c"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrBackend)
	assert.Len(t, gen.prompts, 2)
}

func TestSummarizeProgressErrorAborts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gen := &scriptedGenerator{}
	s := summary.New(gen, cfg, nil)
	stop := errors.New("stale")

	_, err := s.Summarize(context.Background(), language.English, []string{"a", "b"}, func(_ context.Context, step, _ int) error {
		if step == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Len(t, gen.prompts, 1)
}

func TestSummarizeRejectsEmptyAndUnsupported(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := summary.New(&scriptedGenerator{}, cfg, nil)

	_, err := s.Summarize(context.Background(), language.English, nil, nil)
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = s.Summarize(context.Background(), language.Language("de"), []string{"x"}, nil)
	assert.ErrorIs(t, err, services.ErrUnsupportedLanguage)
	assert.Equal(t, 3, summary.Steps(2))
}
