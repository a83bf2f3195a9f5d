package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kthgpt/internal/jobs"
	"kthgpt/internal/store"
	"kthgpt/internal/testsupport"
)

func TestSQLiteQueueLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	lecture := testsupport.NewLecture(t, st, "0_abc", "en")
	attempt, err := st.BeginAnalysis(ctx, lecture.ID, store.StateDownloading, 1)
	require.NoError(t, err)

	q := jobs.NewSQLiteQueue(st)

	empty, err := q.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	desc := jobs.Descriptor{Kind: jobs.KindDownload, LectureID: lecture.ID, AnalysisID: attempt.ID}
	require.NoError(t, q.Enqueue(ctx, desc))

	delivery, err := q.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, delivery)
	assert.Equal(t, desc, delivery.Descriptor)
	assert.Equal(t, 1, delivery.Attempts)

	require.NoError(t, q.Touch(ctx, delivery))
	require.NoError(t, q.Complete(ctx, delivery))
	assert.Error(t, q.Complete(ctx, delivery), "completing twice should fail")

	done, err := st.ListJobs(ctx, store.JobDone)
	require.NoError(t, err)
	assert.Len(t, done, 1)
}

func TestSQLiteQueueRejectsInvalidDescriptor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	q := jobs.NewSQLiteQueue(st)

	err := q.Enqueue(context.Background(), jobs.Descriptor{Kind: "encode", LectureID: 1, AnalysisID: 1})
	assert.Error(t, err)
	err = q.Enqueue(context.Background(), jobs.Descriptor{Kind: jobs.KindDownload})
	assert.Error(t, err)
}

func TestSQLiteQueueRequeueStale(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	lecture := testsupport.NewLecture(t, st, "0_abc", "en")
	attempt, err := st.BeginAnalysis(ctx, lecture.ID, store.StateDownloading, 1)
	require.NoError(t, err)

	q := jobs.NewSQLiteQueue(st)
	require.NoError(t, q.Enqueue(ctx, jobs.Descriptor{Kind: jobs.KindDownload, LectureID: lecture.ID, AnalysisID: attempt.ID}))
	first, err := q.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	requeued, err := q.RequeueStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, requeued)

	second, err := q.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Attempts)

	require.NoError(t, q.Fail(ctx, second, "boom"))
	failed, err := st.ListJobs(ctx, store.JobFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].ErrorMessage)
}

func TestParseKind(t *testing.T) {
	kind, err := jobs.ParseKind(" Summarize ")
	require.NoError(t, err)
	assert.Equal(t, jobs.KindSummarize, kind)

	_, err = jobs.ParseKind("encode")
	assert.Error(t, err)
}

func TestNewFromConfigSelectsSQLite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	backend, err := jobs.NewFromConfig(context.Background(), cfg, st)
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	cfg.Dispatch.Backend = "kafka"
	_, err = jobs.NewFromConfig(context.Background(), cfg, st)
	assert.Error(t, err)
}
