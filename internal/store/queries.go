package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// LatestAnsweredQuery returns the newest answered query for the lecture with
// the given fingerprint.
func (s *Store) LatestAnsweredQuery(ctx context.Context, lectureID int64, fingerprint string) (*Query, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		"SELECT "+queryColumns+` FROM queries
        WHERE lecture_id = ? AND fingerprint = ? AND response IS NOT NULL
        ORDER BY id DESC LIMIT 1`,
		lectureID,
		fingerprint,
	)
	query, err := scanQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest answered query: %w", err)
	}
	return query, nil
}

// CreateQuery records a new unanswered query.
func (s *Store) CreateQuery(ctx context.Context, lectureID int64, text, fingerprint string) (*Query, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return nil, errors.New("create query: fingerprint is required")
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queries (lecture_id, query_string, fingerprint, created_at) VALUES (?, ?, ?, ?)`,
		lectureID,
		text,
		fingerprint,
		nowString(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert query: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetQuery(ctx, id)
}

// GetQuery fetches one query by id.
func (s *Store) GetQuery(ctx context.Context, id int64) (*Query, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+queryColumns+" FROM queries WHERE id = ?", id)
	query, err := scanQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get query %d: %w", id, err)
	}
	return query, nil
}

// SetQueryResponse writes the response of an unanswered query. A response is
// written at most once.
func (s *Store) SetQueryResponse(ctx context.Context, id int64, response string) error {
	timestamp := nowString()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queries SET response = ?, answered_at = ? WHERE id = ? AND response IS NULL`,
		response,
		timestamp,
		id,
	)
	if err != nil {
		return fmt.Errorf("set query response %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	existing, err := s.GetQuery(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("set query response %d: %w", id, ErrNoRows)
	}
	return fmt.Errorf("set query response %d: %w", id, ErrResponseSet)
}

// ListQueries returns a lecture's queries, newest first. limit <= 0 returns all.
func (s *Store) ListQueries(ctx context.Context, lectureID int64, limit int) ([]*Query, error) {
	statement := "SELECT " + queryColumns + " FROM queries WHERE lecture_id = ? ORDER BY id DESC"
	args := []any{lectureID}
	if limit > 0 {
		statement += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), statement, args...)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	var queries []*Query
	for rows.Next() {
		query, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, query)
	}
	return queries, rows.Err()
}
