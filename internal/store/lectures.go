package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateLecture inserts a lecture identified by its public id and language.
func (s *Store) CreateLecture(ctx context.Context, publicID, language, title string) (*Lecture, error) {
	publicID = strings.TrimSpace(publicID)
	language = strings.TrimSpace(language)
	if publicID == "" {
		return nil, errors.New("create lecture: public id is required")
	}
	if language == "" {
		return nil, errors.New("create lecture: language is required")
	}

	timestamp := nowString()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO lectures (public_id, language, title, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)`,
		publicID,
		language,
		nullableString(strings.TrimSpace(title)),
		timestamp,
		timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create lecture %s/%s: %w", publicID, language, ErrLectureExists)
		}
		return nil, fmt.Errorf("insert lecture: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetLecture(ctx, id)
}

// GetLecture fetches a lecture by row id.
func (s *Store) GetLecture(ctx context.Context, id int64) (*Lecture, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+lectureColumns+" FROM lectures WHERE id = ?", id)
	lecture, err := scanLecture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lecture %d: %w", id, err)
	}
	return lecture, nil
}

// FindLecture looks up a lecture by public id and language.
func (s *Store) FindLecture(ctx context.Context, publicID, language string) (*Lecture, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		"SELECT "+lectureColumns+" FROM lectures WHERE public_id = ? AND language = ?",
		strings.TrimSpace(publicID),
		strings.TrimSpace(language),
	)
	lecture, err := scanLecture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find lecture %s/%s: %w", publicID, language, err)
	}
	return lecture, nil
}

// UpdateLecture persists the mutable lecture fields.
func (s *Store) UpdateLecture(ctx context.Context, lecture *Lecture) error {
	if lecture == nil {
		return errors.New("update lecture: nil lecture")
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE lectures SET title = ?, media_path = ?, transcript_path = ?, summary_text = ?,
        overview = ?, updated_at = ? WHERE id = ?`,
		nullableString(lecture.Title),
		nullableString(lecture.MediaPath),
		nullableString(lecture.TranscriptPath),
		nullableString(lecture.SummaryText),
		nullableString(lecture.Overview),
		nowString(),
		lecture.ID,
	)
	if err != nil {
		return fmt.Errorf("update lecture %d: %w", lecture.ID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update lecture %d: %w", lecture.ID, ErrNoRows)
	}
	return nil
}

// ListLectures returns every lecture ordered by creation.
func (s *Store) ListLectures(ctx context.Context) ([]*Lecture, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT "+lectureColumns+" FROM lectures ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}
	defer rows.Close()

	var lectures []*Lecture
	for rows.Next() {
		lecture, err := scanLecture(rows)
		if err != nil {
			return nil, err
		}
		lectures = append(lectures, lecture)
	}
	return lectures, rows.Err()
}
