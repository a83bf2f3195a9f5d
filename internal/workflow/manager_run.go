package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"kthgpt/internal/jobs"
	"kthgpt/internal/logging"
	"kthgpt/internal/services"
	"kthgpt/internal/textutil"
)

const maxJobError = 500

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.source == nil || m.runner == nil {
		m.mu.Unlock()
		return errors.New("workflow job source and runner are required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the job in flight.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStale(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.WarnWithContext(m.logger, "reclaim stale work failed; stuck attempts may remain", "heartbeat_reclaim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database and dispatch backend access"),
			)
		}

		claimed, err := m.ProcessNext(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			return
		case err != nil && !claimed:
			m.handleClaimError(ctx, err)
		case !claimed:
			m.wait(ctx, m.pollInterval)
		}
	}
}

// ProcessNext claims one job and runs it. It reports whether a job was
// claimed; the error is the claim or run error.
func (m *Manager) ProcessNext(ctx context.Context) (bool, error) {
	delivery, err := m.source.Claim(ctx)
	if err != nil {
		return false, err
	}
	if delivery == nil {
		return false, nil
	}
	m.setLastJob(delivery)

	jobCtx := services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(jobCtx, m.logger).With(
		logging.String("job_id", delivery.ID),
		logging.String("job_kind", string(delivery.Kind)),
		logging.Int64(logging.FieldAnalysisID, delivery.AnalysisID),
		logging.Int("attempts", delivery.Attempts),
	)
	logger.Info("job claimed", logging.String(logging.FieldEventType, "job_claimed"))

	runErr := m.runWithHeartbeat(jobCtx, logger, delivery)

	// Outcomes are recorded even when the manager is stopping mid-job.
	ackCtx := context.WithoutCancel(jobCtx)
	if runErr != nil {
		m.setLastError(runErr)
		m.count(false)
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.Error(runErr),
			logging.String("error_kind", string(services.KindOf(runErr))),
		)
		if err := m.source.Fail(ackCtx, delivery, textutil.Truncate(runErr.Error(), maxJobError)); err != nil {
			logger.Warn("failed to record job failure", logging.Error(err))
		}
		return true, runErr
	}

	m.count(true)
	if err := m.source.Complete(ackCtx, delivery); err != nil {
		logger.Warn("failed to acknowledge job", logging.Error(err))
	}
	logger.Info("job completed", logging.String(logging.FieldEventType, "job_completed"))
	return true, nil
}

func (m *Manager) runWithHeartbeat(ctx context.Context, logger *slog.Logger, delivery *jobs.Delivery) error {
	hbCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if m.heartbeat.Enabled() {
		wg.Add(1)
		go m.heartbeat.StartLoop(hbCtx, &wg, logger, delivery)
	}
	err := m.runner.Run(ctx, delivery.Descriptor)
	cancel()
	wg.Wait()
	return err
}

func (m *Manager) handleClaimError(ctx context.Context, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(m.logger, "failed to claim next job", "job_claim_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the dispatch backend"),
	)
	m.wait(ctx, m.errorRetryInterval)
}

func (m *Manager) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
