package store

import "errors"

var (
	// ErrAttemptActive is returned when a lecture already has a running analysis.
	ErrAttemptActive = errors.New("analysis already in progress")
	// ErrStaleAnalysis is returned when a compare-and-swap update lost a race
	// or targeted an attempt that is no longer the lecture's latest.
	ErrStaleAnalysis = errors.New("analysis changed concurrently")
	// ErrResponseSet is returned when a query response was already written.
	ErrResponseSet = errors.New("query response already set")
	// ErrLectureExists is returned when a lecture with the same public id and
	// language is already stored.
	ErrLectureExists = errors.New("lecture already exists")
	// ErrNoRows is returned by updates that matched nothing by id.
	ErrNoRows = errors.New("no matching row")
)
