package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"kthgpt/internal/jobs"
	"kthgpt/internal/logging"
)

const staleReason = "worker stopped responding"

// HeartbeatMonitor keeps claimed work alive and reaps work whose worker died.
type HeartbeatMonitor struct {
	source            jobs.Source
	attempts          Attempts
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	now               func() time.Time
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(source jobs.Source, attempts Attempts, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		source:            source,
		attempts:          attempts,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
		now:               time.Now,
	}
}

// Enabled reports whether heartbeats are sent at all.
func (h *HeartbeatMonitor) Enabled() bool {
	return h.heartbeatInterval > 0
}

// ReclaimStale fails attempts whose heartbeat expired, then requeues stale
// jobs. Attempts go first so the redelivered job finds its attempt in
// failure and is skipped.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) error {
	if h.heartbeatTimeout <= 0 {
		return nil
	}
	cutoff := h.now().Add(-h.heartbeatTimeout)
	var errs []error
	if h.attempts != nil {
		ids, err := h.attempts.FailStaleAnalyses(ctx, cutoff, staleReason)
		if err != nil {
			errs = append(errs, err)
		}
		if len(ids) > 0 {
			logging.WarnWithContext(h.logger, "failed stale analysis attempts", "heartbeat_reaped",
				logging.Any("analysis_ids", ids),
				logging.String(logging.FieldImpact, "lectures must be reprocessed"),
			)
		}
	}
	if h.source != nil {
		requeued, err := h.source.RequeueStale(ctx, cutoff)
		if err != nil {
			errs = append(errs, err)
		}
		if requeued > 0 {
			h.logger.Info("requeued stale jobs", logging.Int64("count", requeued))
		}
	}
	return errors.Join(errs...)
}

// StartLoop touches the job and its attempt every interval until ctx ends.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger, delivery *jobs.Delivery) {
	defer wg.Done()
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger = logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat"))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.beat(ctx, logger, delivery)
		}
	}
}

func (h *HeartbeatMonitor) beat(ctx context.Context, logger *slog.Logger, delivery *jobs.Delivery) {
	if err := h.source.Touch(ctx, delivery); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("job heartbeat failed", logging.Error(err))
	}
	if h.attempts == nil {
		return
	}
	if err := h.attempts.TouchAnalysis(ctx, delivery.AnalysisID); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("analysis heartbeat failed", logging.Error(err))
	}
}
