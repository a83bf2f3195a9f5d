package query_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kthgpt/internal/cache"
	"kthgpt/internal/query"
	"kthgpt/internal/services"
	"kthgpt/internal/services/llm"
	"kthgpt/internal/store"
	"kthgpt/internal/testsupport"
)

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	opts    []llm.Options
	reply   string
	err     error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, opts llm.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fixture struct {
	svc     *query.Service
	store   *store.Store
	backend *fakeGenerator
}

func newFixture(t *testing.T, backend query.Generator) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Query.RetryIntervals = []int{10, 20}
	st := testsupport.MustOpenStore(t, cfg)
	fake, _ := backend.(*fakeGenerator)
	svc := query.NewService(cache.New(st), st, backend, cfg.QueryPolicy(), nil)
	return fixture{svc: svc, store: st, backend: fake}
}

func TestAnswerCachesResponses(t *testing.T) {
	backend := &fakeGenerator{reply: "This lecture covers X."}
	fx := newFixture(t, backend)
	lecture := testsupport.NewSummarizedLecture(t, fx.store, "L1", "en", "Lecture about X.")
	ctx := context.Background()

	first, err := fx.svc.Answer(ctx, lecture, "Summarize the lecture", false)
	require.NoError(t, err)
	assert.Equal(t, "This lecture covers X.", first.Response)
	assert.False(t, first.Cached)

	second, err := fx.svc.Answer(ctx, lecture, "Summarize the lecture", false)
	require.NoError(t, err)
	assert.Equal(t, "This lecture covers X.", second.Response)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, backend.calls(), "cache hit must not call the backend")

	require.Len(t, backend.prompts, 1)
	assert.Contains(t, backend.prompts[0], "Lecture about X.")
	assert.Contains(t, backend.prompts[0], "Summarize the lecture")
}

func TestAnswerPassesQueryPolicy(t *testing.T) {
	backend := &fakeGenerator{reply: "ok"}
	fx := newFixture(t, backend)
	lecture := testsupport.NewLecture(t, fx.store, "L1", "en")

	answer, err := fx.svc.Answer(context.Background(), lecture, "q", false)
	require.NoError(t, err)

	require.Len(t, backend.opts, 1)
	opts := backend.opts[0]
	assert.Equal(t, 60, int(opts.TimeToLive.Seconds()))
	assert.Equal(t, 2, opts.MaxRetries)
	require.Len(t, opts.RetryIntervals, 2)
	assert.Equal(t, 10, int(opts.RetryIntervals[0].Seconds()))
	assert.Equal(t, 20, int(opts.RetryIntervals[1].Seconds()))
	assert.Equal(t, answer.QueryID, mustParseID(t, opts.CorrelationID))
}

func TestAnswerOverrideBypassesCache(t *testing.T) {
	backend := &fakeGenerator{reply: "first"}
	fx := newFixture(t, backend)
	lecture := testsupport.NewLecture(t, fx.store, "L1", "en")
	ctx := context.Background()

	_, err := fx.svc.Answer(ctx, lecture, "What is X?", false)
	require.NoError(t, err)

	backend.reply = "second"
	refreshed, err := fx.svc.Answer(ctx, lecture, "What is X?", true)
	require.NoError(t, err)
	assert.False(t, refreshed.Cached)
	assert.Equal(t, "second", refreshed.Response)
	assert.Equal(t, 2, backend.calls())
}

func TestAnswerSwedishUsesSwedishPrompt(t *testing.T) {
	backend := &fakeGenerator{reply: "svar"}
	fx := newFixture(t, backend)
	lecture := testsupport.NewSummarizedLecture(t, fx.store, "L2", "sv", "Föreläsning om Y.")

	_, err := fx.svc.Answer(context.Background(), lecture, "Vad är Y?", false)
	require.NoError(t, err)
	require.Len(t, backend.prompts, 1)
	assert.NotEqual(t, englishPrompt(t, "Föreläsning om Y.", "Vad är Y?"), backend.prompts[0])
}

func TestAnswerUnsupportedLanguageWritesNothing(t *testing.T) {
	backend := &fakeGenerator{reply: "x"}
	fx := newFixture(t, backend)
	lecture := testsupport.NewLecture(t, fx.store, "L3", "de")
	ctx := context.Background()

	_, err := fx.svc.Answer(ctx, lecture, "Was ist Z?", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrUnsupportedLanguage)
	assert.Equal(t, services.KindInput, services.KindOf(err))
	assert.Equal(t, 0, backend.calls())

	history, err := fx.store.ListQueries(ctx, lecture.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAnswerBackendFailureLeavesQueryUnanswered(t *testing.T) {
	cause := &llm.TransportError{Attempts: 3, Timeout: true}
	backend := &fakeGenerator{err: cause}
	fx := newFixture(t, backend)
	lecture := testsupport.NewLecture(t, fx.store, "L1", "en")
	ctx := context.Background()

	_, err := fx.svc.Answer(ctx, lecture, "q", false)
	require.Error(t, err)

	var failure *query.BackendFailure
	require.True(t, errors.As(err, &failure))
	assert.Same(t, cause, failure.Cause)
	assert.ErrorIs(t, err, services.ErrBackend)
	assert.Equal(t, "processing failed, please try again later", query.UserMessage(err))

	history, err := fx.store.ListQueries(ctx, lecture.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Answered())
}

func TestAnswerWithHTTPBackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := llm.NewClient(llm.Config{APIKey: "k", BaseURL: server.URL})
	fx := newFixture(t, client)
	lecture := testsupport.NewLecture(t, fx.store, "L1", "en")

	_, err := fx.svc.Answer(context.Background(), lecture, "q", false)
	require.Error(t, err)
	var backendErr *llm.BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, http.StatusUnauthorized, backendErr.StatusCode)
	assert.Equal(t, 1, backendErr.Attempts)
}

func TestAnswerRequest(t *testing.T) {
	backend := &fakeGenerator{reply: "answer"}
	fx := newFixture(t, backend)
	testsupport.NewLecture(t, fx.store, "L1", "sv")
	ctx := context.Background()

	answer, err := fx.svc.AnswerRequest(ctx, query.Request{PublicID: "L1", Language: "Swedish", Query: "Vad?"})
	require.NoError(t, err)
	assert.Equal(t, "answer", answer.Response)

	_, err = fx.svc.AnswerRequest(ctx, query.Request{PublicID: "missing", Language: "sv", Query: "Vad?"})
	assert.ErrorIs(t, err, services.ErrNotFound)
	assert.Equal(t, "lecture not found", query.UserMessage(err))

	_, err = fx.svc.AnswerRequest(ctx, query.Request{PublicID: "L1", Language: "sv"})
	assert.ErrorIs(t, err, services.ErrValidation)
	assert.Contains(t, err.Error(), "query is required")

	_, err = fx.svc.AnswerRequest(ctx, query.Request{PublicID: "L1", Language: "sv", Query: strings.Repeat("a", 4001)})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = fx.svc.AnswerRequest(ctx, query.Request{PublicID: "L1", Language: "klingon", Query: "q"})
	assert.ErrorIs(t, err, services.ErrUnsupportedLanguage)
}

func TestAnswerRejectsBlankQuery(t *testing.T) {
	backend := &fakeGenerator{reply: "x"}
	fx := newFixture(t, backend)
	lecture := testsupport.NewLecture(t, fx.store, "L1", "en")

	_, err := fx.svc.Answer(context.Background(), lecture, "   ", false)
	assert.ErrorIs(t, err, services.ErrValidation)
	assert.Equal(t, 0, backend.calls())
}
