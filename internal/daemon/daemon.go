package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"kthgpt/internal/config"
	"kthgpt/internal/logging"
	"kthgpt/internal/store"
	"kthgpt/internal/workflow"
)

// Daemon coordinates the background worker and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	backend  io.Closer
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	Workflow        workflow.StatusSummary
	DatabasePath    string
	LockFilePath    string
	DispatchBackend string
}

// New constructs a daemon with initialized dependencies. backend may be nil
// when the job queue shares the store.
func New(cfg *config.Config, st *store.Store, backend io.Closer, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || st == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		backend:  backend,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another kthgpt worker is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("kthgpt worker started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("dispatch", d.cfg.Dispatch.Backend),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no worker is running"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("kthgpt worker stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.backend != nil {
		errs = append(errs, d.backend.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

// ListJobs returns stored jobs filtered by optional statuses. Jobs held in
// Redis are not visible here.
func (d *Daemon) ListJobs(ctx context.Context, statuses ...store.JobStatus) ([]*store.Job, error) {
	if d.store == nil {
		return nil, errors.New("store unavailable")
	}
	return d.store.ListJobs(ctx, statuses...)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (store.DatabaseHealth, error) {
	if d.store == nil {
		return store.DatabaseHealth{}, errors.New("store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:         d.running.Load(),
		Workflow:        d.workflow.Status(ctx),
		DatabasePath:    d.store.Path(),
		LockFilePath:    d.lockPath,
		DispatchBackend: d.cfg.Dispatch.Backend,
	}
}
