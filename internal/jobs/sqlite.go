package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"kthgpt/internal/store"
)

// SQLiteQueue keeps jobs in the store's jobs table.
type SQLiteQueue struct {
	store *store.Store
}

// NewSQLiteQueue wraps st.
func NewSQLiteQueue(st *store.Store) *SQLiteQueue {
	return &SQLiteQueue{store: st}
}

// Enqueue inserts a queued job row.
func (q *SQLiteQueue) Enqueue(ctx context.Context, desc Descriptor) error {
	if err := validate(desc); err != nil {
		return err
	}
	if _, err := q.store.EnqueueJob(ctx, string(desc.Kind), desc.LectureID, desc.AnalysisID); err != nil {
		return fmt.Errorf("enqueue %s job: %w", desc.Kind, err)
	}
	return nil
}

// Claim marks the oldest queued job running.
func (q *SQLiteQueue) Claim(ctx context.Context) (*Delivery, error) {
	job, err := q.store.ClaimJob(ctx)
	if err != nil || job == nil {
		return nil, err
	}
	return &Delivery{
		ID:       strconv.FormatInt(job.ID, 10),
		Attempts: job.Attempts,
		Descriptor: Descriptor{
			Kind:       Kind(job.Kind),
			LectureID:  job.LectureID,
			AnalysisID: job.AnalysisID,
		},
	}, nil
}

// Complete marks the job done.
func (q *SQLiteQueue) Complete(ctx context.Context, d *Delivery) error {
	id, err := deliveryID(d)
	if err != nil {
		return err
	}
	return q.store.CompleteJob(ctx, id)
}

// Fail marks the job failed.
func (q *SQLiteQueue) Fail(ctx context.Context, d *Delivery, reason string) error {
	id, err := deliveryID(d)
	if err != nil {
		return err
	}
	return q.store.FailJob(ctx, id, reason)
}

// Touch refreshes the job heartbeat.
func (q *SQLiteQueue) Touch(ctx context.Context, d *Delivery) error {
	id, err := deliveryID(d)
	if err != nil {
		return err
	}
	return q.store.TouchJob(ctx, id)
}

// RequeueStale requeues running jobs with an expired heartbeat.
func (q *SQLiteQueue) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	return q.store.RequeueStaleJobs(ctx, cutoff)
}

func deliveryID(d *Delivery) (int64, error) {
	if d == nil {
		return 0, fmt.Errorf("delivery is required")
	}
	id, err := strconv.ParseInt(d.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid job id %q: %w", d.ID, err)
	}
	return id, nil
}
