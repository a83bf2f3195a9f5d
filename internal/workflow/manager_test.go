package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kthgpt/internal/jobs"
	"kthgpt/internal/logging"
	"kthgpt/internal/services"
	"kthgpt/internal/stage"
	"kthgpt/internal/store"
	"kthgpt/internal/testsupport"
	"kthgpt/internal/workflow"
)

type stubRunner struct {
	mu           sync.Mutex
	err          error
	descriptors  []jobs.Descriptor
	correlations []string
}

func (s *stubRunner) Run(ctx context.Context, desc jobs.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptors = append(s.descriptors, desc)
	id, _ := services.RequestIDFromContext(ctx)
	s.correlations = append(s.correlations, id)
	return s.err
}

func (s *stubRunner) HealthCheck(context.Context) []stage.Health {
	return []stage.Health{stage.Healthy("download"), stage.Unhealthy("transcribe", "binary missing")}
}

func (s *stubRunner) runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.descriptors)
}

type fixture struct {
	st      *store.Store
	queue   *jobs.SQLiteQueue
	runner  *stubRunner
	manager *workflow.Manager
	desc    jobs.Descriptor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.PollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	st := testsupport.MustOpenStore(t, cfg)
	lecture := testsupport.NewLecture(t, st, "0_abc", "en")
	attempt, err := st.BeginAnalysis(context.Background(), lecture.ID, store.StateDownloading, 1)
	require.NoError(t, err)

	queue := jobs.NewSQLiteQueue(st)
	runner := &stubRunner{}
	return &fixture{
		st:      st,
		queue:   queue,
		runner:  runner,
		manager: workflow.NewManager(cfg, queue, runner, st, logging.NewNop()),
		desc:    jobs.Descriptor{Kind: jobs.KindDownload, LectureID: lecture.ID, AnalysisID: attempt.ID},
	}
}

func TestProcessNextWithoutJobs(t *testing.T) {
	f := newFixture(t)
	claimed, err := f.manager.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Zero(t, f.runner.runs())
}

func TestProcessNextCompletesJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.queue.Enqueue(ctx, f.desc))

	claimed, err := f.manager.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, claimed)

	require.Len(t, f.runner.descriptors, 1)
	assert.Equal(t, f.desc, f.runner.descriptors[0])
	assert.NotEmpty(t, f.runner.correlations[0], "each job runs under a correlation id")

	done, err := f.st.ListJobs(ctx, store.JobDone)
	require.NoError(t, err)
	assert.Len(t, done, 1)

	status := f.manager.Status(ctx)
	assert.EqualValues(t, 1, status.JobsProcessed)
	assert.Zero(t, status.JobsFailed)
	require.NotNil(t, status.LastJob)
	assert.Equal(t, jobs.KindDownload, status.LastJob.Kind)
	assert.Equal(t, 1, status.AnalysisStats[store.StateDownloading])
	assert.True(t, status.StageHealth["download"].Ready)
	assert.False(t, status.StageHealth["transcribe"].Ready)
}

func TestProcessNextRecordsFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runner.err = errors.New("pipeline error: download: ffmpeg failed")
	require.NoError(t, f.queue.Enqueue(ctx, f.desc))

	claimed, err := f.manager.ProcessNext(ctx)
	assert.True(t, claimed)
	require.Error(t, err)

	failed, err := f.st.ListJobs(ctx, store.JobFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].ErrorMessage, "ffmpeg failed")

	status := f.manager.Status(ctx)
	assert.EqualValues(t, 1, status.JobsFailed)
	assert.Contains(t, status.LastError, "ffmpeg failed")
}

func TestManagerStartProcessesQueuedJobs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.queue.Enqueue(ctx, f.desc))

	require.NoError(t, f.manager.Start(ctx))
	assert.Error(t, f.manager.Start(ctx), "second start should fail")
	assert.Eventually(t, func() bool { return f.runner.runs() == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.True(t, f.manager.Status(ctx).Running)

	f.manager.Stop()
	assert.False(t, f.manager.Status(ctx).Running)
	f.manager.Stop()
}
