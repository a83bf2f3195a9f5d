package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EnqueueJob queues a stage job for an analysis attempt.
func (s *Store) EnqueueJob(ctx context.Context, kind string, lectureID, analysisID int64) (*Job, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return nil, errors.New("enqueue job: kind is required")
	}
	timestamp := nowString()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (kind, lecture_id, analysis_id, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		kind,
		lectureID,
		analysisID,
		JobQueued,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches one job by id.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// ClaimJob atomically marks the oldest queued job running and returns it.
// Returns nil when the queue is empty.
func (s *Store) ClaimJob(ctx context.Context) (*Job, error) {
	var job *Job
	timestamp := nowString()
	err := s.queryRowWithRetry(ctx, func(row *sql.Row) error {
		claimed, scanErr := scanJob(row)
		if scanErr != nil {
			return scanErr
		}
		job = claimed
		return nil
	},
		`UPDATE jobs SET status = ?, attempts = attempts + 1, updated_at = ?, last_heartbeat = ?
        WHERE id = (SELECT id FROM jobs WHERE status = ? ORDER BY id LIMIT 1)
        RETURNING `+jobColumns,
		JobRunning,
		timestamp,
		timestamp,
		JobQueued,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// CompleteJob marks a running job done.
func (s *Store) CompleteJob(ctx context.Context, id int64) error {
	return s.finishJob(ctx, id, JobDone, "")
}

// FailJob marks a running job failed with a message.
func (s *Store) FailJob(ctx context.Context, id int64, message string) error {
	if message == "" {
		message = "job failed"
	}
	return s.finishJob(ctx, id, JobFailed, message)
}

func (s *Store) finishJob(ctx context.Context, id int64, status JobStatus, message string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		status,
		nullableString(message),
		nowString(),
		id,
		JobRunning,
	)
	if err != nil {
		return fmt.Errorf("finish job %d: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("finish job %d: %w", id, ErrNoRows)
	}
	return nil
}

// TouchJob refreshes the heartbeat of a running job.
func (s *Store) TouchJob(ctx context.Context, id int64) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ? WHERE id = ? AND status = ?`,
		nowString(),
		id,
		JobRunning,
	); err != nil {
		return fmt.Errorf("touch job %d: %w", id, err)
	}
	return nil
}

// RequeueStaleJobs returns running jobs whose heartbeat is older than cutoff
// to the queue.
func (s *Store) RequeueStaleJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ?
        WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		JobQueued,
		nowString(),
		JobRunning,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// ListJobs returns jobs, optionally filtered by status, oldest first.
func (s *Store) ListJobs(ctx context.Context, statuses ...JobStatus) ([]*Job, error) {
	statement := "SELECT " + jobColumns + " FROM jobs"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		statement += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	statement += " ORDER BY id"

	rows, err := s.db.QueryContext(ensureContext(ctx), statement, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
