package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// latestClause restricts an analyses query to the lecture's newest attempt.
const latestClause = "id = (SELECT MAX(a2.id) FROM analyses a2 WHERE a2.lecture_id = analyses.lecture_id)"

// BeginAnalysis creates a new attempt for the lecture in the given state.
// The insert only happens when the lecture has no attempt or its latest one is
// idle or failed; the check and the insert are one statement so concurrent
// callers cannot both succeed.
func (s *Store) BeginAnalysis(ctx context.Context, lectureID int64, state AnalysisState, progress int) (*Analysis, error) {
	if !state.Active() {
		return nil, fmt.Errorf("begin analysis: state %q is not a working state", state)
	}
	timestamp := nowString()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO analyses (lecture_id, state, progress, created_at, updated_at, last_heartbeat)
        SELECT ?, ?, ?, ?, ?, NULL
        WHERE NOT EXISTS (
            SELECT 1 FROM analyses
            WHERE lecture_id = ?
              AND id = (SELECT MAX(id) FROM analyses WHERE lecture_id = ?)
              AND state NOT IN (?, ?)
        )`,
		lectureID,
		state,
		progress,
		timestamp,
		timestamp,
		lectureID,
		lectureID,
		StateIdle,
		StateFailure,
	)
	if err != nil {
		return nil, fmt.Errorf("insert analysis: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("lecture %d: %w", lectureID, ErrAttemptActive)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetAnalysis(ctx, id)
}

// TransitionAnalysis moves a to the next state and progress if the stored row
// still matches a's state and progress and a is still the lecture's latest
// attempt. Rule checking belongs to the caller; this is the atomic write.
func (s *Store) TransitionAnalysis(ctx context.Context, a *Analysis, next AnalysisState, progress int, reason string) (*Analysis, error) {
	if a == nil {
		return nil, errors.New("transition analysis: nil analysis")
	}
	if !next.Valid() {
		return nil, fmt.Errorf("transition analysis: unknown state %q", next)
	}
	completed := a.CompletedStage
	if next == StateIdle && a.State.Active() {
		completed = a.State
	}
	now := time.Now().UTC()
	timestamp := formatTime(now)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE analyses SET state = ?, progress = ?, failure_reason = ?, completed_stage = ?, updated_at = ?, last_heartbeat = ?
        WHERE id = ? AND state = ? AND progress = ? AND `+latestClause,
		next,
		progress,
		nullableString(reason),
		nullableString(string(completed)),
		timestamp,
		timestamp,
		a.ID,
		a.State,
		a.Progress,
	)
	if err != nil {
		return nil, fmt.Errorf("update analysis %d: %w", a.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("analysis %d at %s/%d: %w", a.ID, a.State, a.Progress, ErrStaleAnalysis)
	}

	updated := *a
	updated.State = next
	updated.Progress = progress
	updated.FailureReason = reason
	updated.CompletedStage = completed
	updated.UpdatedAt = now
	updated.LastHeartbeat = &now
	return &updated, nil
}

// GetAnalysis fetches one attempt by id.
func (s *Store) GetAnalysis(ctx context.Context, id int64) (*Analysis, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+analysisColumns+" FROM analyses WHERE id = ?", id)
	analysis, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis %d: %w", id, err)
	}
	return analysis, nil
}

// CurrentAnalysis returns the lecture's latest attempt.
func (s *Store) CurrentAnalysis(ctx context.Context, lectureID int64) (*Analysis, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		"SELECT "+analysisColumns+" FROM analyses WHERE lecture_id = ? ORDER BY id DESC LIMIT 1",
		lectureID,
	)
	analysis, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current analysis for lecture %d: %w", lectureID, err)
	}
	return analysis, nil
}

// ListAnalyses returns every attempt of a lecture, newest first.
func (s *Store) ListAnalyses(ctx context.Context, lectureID int64) ([]*Analysis, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		"SELECT "+analysisColumns+" FROM analyses WHERE lecture_id = ? ORDER BY id DESC",
		lectureID,
	)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var analyses []*Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}
	return analyses, rows.Err()
}

// TouchAnalysis refreshes the heartbeat of a working attempt.
func (s *Store) TouchAnalysis(ctx context.Context, id int64) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE analyses SET last_heartbeat = ? WHERE id = ? AND state IN (`+makePlaceholders(len(ActiveStates))+`)`,
		append([]any{nowString(), id}, activeStateArgs()...)...,
	)
	if err != nil {
		return fmt.Errorf("touch analysis %d: %w", id, err)
	}
	return nil
}

// FailStaleAnalyses moves working attempts whose heartbeat is older than
// cutoff to failure and returns their ids. Attempts no worker has touched yet
// carry no heartbeat and are left alone.
func (s *Store) FailStaleAnalyses(ctx context.Context, cutoff time.Time, reason string) ([]int64, error) {
	if reason == "" {
		reason = "worker stopped responding"
	}
	ctx = ensureContext(ctx)
	args := []any{StateFailure, reason, nowString()}
	args = append(args, activeStateArgs()...)
	args = append(args, formatTime(cutoff))

	var ids []int64
	err := retryOnBusy(ctx, func() error {
		ids = ids[:0]
		rows, err := s.db.QueryContext(
			ctx,
			`UPDATE analyses SET state = ?, failure_reason = ?, updated_at = ?
            WHERE state IN (`+makePlaceholders(len(ActiveStates))+`)
              AND last_heartbeat IS NOT NULL AND last_heartbeat < ?
            RETURNING id`,
			args...,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("fail stale analyses: %w", err)
	}
	return ids, nil
}

// Stats counts lectures by the state of their latest attempt. Lectures that
// were never processed are counted as idle.
func (s *Store) Stats(ctx context.Context) (map[AnalysisState]int, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT COALESCE(a.state, ?), COUNT(1)
        FROM lectures l
        LEFT JOIN analyses a ON a.id = (SELECT MAX(id) FROM analyses WHERE lecture_id = l.id)
        GROUP BY 1`,
		StateIdle,
	)
	if err != nil {
		return nil, fmt.Errorf("analysis stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[AnalysisState]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[AnalysisState(state)] = count
	}
	return stats, rows.Err()
}

func activeStateArgs() []any {
	args := make([]any, len(ActiveStates))
	for i, state := range ActiveStates {
		args[i] = state
	}
	return args
}
