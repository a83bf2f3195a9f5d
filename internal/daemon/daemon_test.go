package daemon_test

import (
	"context"
	"testing"
	"time"

	"kthgpt/internal/config"
	"kthgpt/internal/daemon"
	"kthgpt/internal/jobs"
	"kthgpt/internal/logging"
	"kthgpt/internal/stage"
	"kthgpt/internal/store"
	"kthgpt/internal/testsupport"
	"kthgpt/internal/workflow"
)

type noopRunner struct{}

func (noopRunner) Run(context.Context, jobs.Descriptor) error { return nil }
func (noopRunner) HealthCheck(context.Context) []stage.Health {
	return []stage.Health{stage.Healthy("noop")}
}

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *store.Store) {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, jobs.NewSQLiteQueue(st), noopRunner{}, st, logging.NewNop())
	d, err := daemon.New(cfg, st, nil, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, st
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}
	if status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("unexpected database path %q", status.DatabasePath)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newDaemon(t, cfg)
	second, _ := newDaemon(t, cfg)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected second instance to be locked out")
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release failed: %v", err)
	}
	second.Stop()
}

func TestDaemonListsJobsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, st := newDaemon(t, cfg)
	ctx := context.Background()

	lecture := testsupport.NewLecture(t, st, "0_abc", "en")
	attempt, err := st.BeginAnalysis(ctx, lecture.ID, store.StateDownloading, 1)
	if err != nil {
		t.Fatalf("BeginAnalysis: %v", err)
	}
	if _, err := st.EnqueueJob(ctx, string(jobs.KindDownload), lecture.ID, attempt.ID); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	queued, err := d.ListJobs(ctx, store.JobQueued)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("expected 1 queued job, got %d", len(queued))
	}

	health, err := d.DatabaseHealth(ctx)
	if err != nil {
		t.Fatalf("DatabaseHealth: %v", err)
	}
	if !health.IntegrityOK || len(health.MissingTables) != 0 {
		t.Fatalf("unexpected health: %+v", health)
	}
}
