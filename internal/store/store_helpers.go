package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

// timeLayout is fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nowString() string {
	return formatTime(time.Now())
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func parseNullTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &t
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}

const lectureColumns = "id, public_id, language, title, media_path, transcript_path, summary_text, overview, created_at, updated_at"

func scanLecture(scanner rowScanner) (*Lecture, error) {
	var (
		lecture        Lecture
		title          sql.NullString
		mediaPath      sql.NullString
		transcriptPath sql.NullString
		summaryText    sql.NullString
		overview       sql.NullString
		createdRaw     string
		updatedRaw     string
	)
	if err := scanner.Scan(
		&lecture.ID,
		&lecture.PublicID,
		&lecture.Language,
		&title,
		&mediaPath,
		&transcriptPath,
		&summaryText,
		&overview,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	lecture.Title = title.String
	lecture.MediaPath = mediaPath.String
	lecture.TranscriptPath = transcriptPath.String
	lecture.SummaryText = summaryText.String
	lecture.Overview = overview.String
	if created, err := parseTimeString(createdRaw); err == nil {
		lecture.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		lecture.UpdatedAt = updated
	}
	return &lecture, nil
}

const analysisColumns = "id, lecture_id, state, progress, failure_reason, completed_stage, created_at, updated_at, last_heartbeat"

func scanAnalysis(scanner rowScanner) (*Analysis, error) {
	var (
		analysis     Analysis
		state        string
		reason       sql.NullString
		completed    sql.NullString
		createdRaw   string
		updatedRaw   string
		heartbeatRaw sql.NullString
	)
	if err := scanner.Scan(
		&analysis.ID,
		&analysis.LectureID,
		&state,
		&analysis.Progress,
		&reason,
		&completed,
		&createdRaw,
		&updatedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}
	analysis.State = AnalysisState(state)
	analysis.FailureReason = reason.String
	analysis.CompletedStage = AnalysisState(completed.String)
	if created, err := parseTimeString(createdRaw); err == nil {
		analysis.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		analysis.UpdatedAt = updated
	}
	analysis.LastHeartbeat = parseNullTime(heartbeatRaw)
	return &analysis, nil
}

const queryColumns = "id, lecture_id, query_string, fingerprint, response, created_at, answered_at"

func scanQuery(scanner rowScanner) (*Query, error) {
	var (
		query       Query
		response    sql.NullString
		createdRaw  string
		answeredRaw sql.NullString
	)
	if err := scanner.Scan(
		&query.ID,
		&query.LectureID,
		&query.QueryString,
		&query.Fingerprint,
		&response,
		&createdRaw,
		&answeredRaw,
	); err != nil {
		return nil, err
	}
	if response.Valid {
		value := response.String
		query.Response = &value
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		query.CreatedAt = created
	}
	query.AnsweredAt = parseNullTime(answeredRaw)
	return &query, nil
}

const jobColumns = "id, kind, lecture_id, analysis_id, status, attempts, error_message, created_at, updated_at, last_heartbeat"

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		job          Job
		status       string
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
		heartbeatRaw sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.Kind,
		&job.LectureID,
		&job.AnalysisID,
		&status,
		&job.Attempts,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}
	job.Status = JobStatus(status)
	job.ErrorMessage = errorMessage.String
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	job.LastHeartbeat = parseNullTime(heartbeatRaw)
	return &job, nil
}
