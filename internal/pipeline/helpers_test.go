package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"kthgpt/internal/config"
	"kthgpt/internal/jobs"
	"kthgpt/internal/logging"
	"kthgpt/internal/media/ffprobe"
	"kthgpt/internal/pipeline"
	"kthgpt/internal/services"
	"kthgpt/internal/services/llm"
	"kthgpt/internal/store"
	"kthgpt/internal/summary"
	"kthgpt/internal/testsupport"
)

type fakeResolver struct {
	st            *store.Store
	playbackErr   error
	manifestErr   error
	progressSeen  []int
	manifestCalls int
}

// record notes the persisted progress of the lecture's attempt at call time.
func (f *fakeResolver) record(ctx context.Context) {
	raw, ok := services.LectureIDFromContext(ctx)
	if !ok || f.st == nil {
		return
	}
	lectureID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}
	if current, err := f.st.CurrentAnalysis(ctx, lectureID); err == nil && current != nil {
		f.progressSeen = append(f.progressSeen, current.Progress)
	}
}

func (f *fakeResolver) ResolvePlaybackURL(ctx context.Context, publicID string) (string, error) {
	f.record(ctx)
	if f.playbackErr != nil {
		return "", f.playbackErr
	}
	return "https://play.example/" + publicID, nil
}

func (f *fakeResolver) ResolveManifest(ctx context.Context, playbackURL string) (string, error) {
	f.record(ctx)
	f.manifestCalls++
	if f.manifestErr != nil {
		return "", f.manifestErr
	}
	return playbackURL + "/index.m3u8", nil
}

type fakeDownloader struct {
	resolver  *fakeResolver
	err       error
	manifests []string
}

func (f *fakeDownloader) Download(ctx context.Context, manifestURL, dest string) error {
	if f.resolver != nil {
		f.resolver.record(ctx)
	}
	f.manifests = append(f.manifests, manifestURL)
	if f.err != nil {
		return f.err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("video"), 0o644)
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, mediaPath, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := os.Stat(mediaPath); err != nil {
		return "", err
	}
	return f.text, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ llm.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("summary %d", len(f.prompts)), nil
}

type fakeProber struct {
	result ffprobe.Result
	err    error
	paths  []string
}

func (f *fakeProber) Inspect(_ context.Context, path string) (ffprobe.Result, error) {
	f.paths = append(f.paths, path)
	return f.result, f.err
}

type failingDispatcher struct {
	inner jobs.Dispatcher
	fail  map[jobs.Kind]bool
}

func (f *failingDispatcher) Enqueue(ctx context.Context, desc jobs.Descriptor) error {
	if f.fail[desc.Kind] {
		return errors.New("queue unavailable")
	}
	return f.inner.Enqueue(ctx, desc)
}

type harness struct {
	cfg         *config.Config
	st          *store.Store
	queue       *jobs.SQLiteQueue
	resolver    *fakeResolver
	downloader  *fakeDownloader
	prober      pipeline.Prober
	transcriber *fakeTranscriber
	generator   *fakeGenerator
	dispatcher  jobs.Dispatcher
	orch        *pipeline.Orchestrator
}

func newHarness(t *testing.T, customize func(*harness)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Summary.ChunkWords = 4
	st := testsupport.MustOpenStore(t, cfg)
	resolver := &fakeResolver{st: st}
	h := &harness{
		cfg:         cfg,
		st:          st,
		queue:       jobs.NewSQLiteQueue(st),
		resolver:    resolver,
		downloader:  &fakeDownloader{resolver: resolver},
		transcriber: &fakeTranscriber{text: strings.Repeat("word ", 10)},
		generator:   &fakeGenerator{},
	}
	h.dispatcher = h.queue
	if customize != nil {
		customize(h)
	}
	orch, err := pipeline.New(pipeline.Dependencies{
		Config:      cfg,
		Store:       st,
		Dispatcher:  h.dispatcher,
		Resolver:    h.resolver,
		Downloader:  h.downloader,
		Prober:      h.prober,
		Transcriber: h.transcriber,
		Summarizer:  summary.New(h.generator, cfg, logging.NewNop()),
		Logger:      logging.NewNop(),
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

// runNext claims the next queued job and runs it, acknowledging the job the
// way the worker does.
func (h *harness) runNext(t *testing.T) (*jobs.Delivery, error) {
	t.Helper()
	ctx := context.Background()
	delivery, err := h.queue.Claim(ctx)
	require.NoError(t, err)
	if delivery == nil {
		return nil, nil
	}
	runErr := h.orch.Run(ctx, delivery.Descriptor)
	if runErr != nil {
		require.NoError(t, h.queue.Fail(ctx, delivery, runErr.Error()))
	} else {
		require.NoError(t, h.queue.Complete(ctx, delivery))
	}
	return delivery, runErr
}
