package store

import "time"

// AnalysisState is the lifecycle state of one processing attempt.
type AnalysisState string

const (
	StateIdle         AnalysisState = "idle"
	StateDownloading  AnalysisState = "downloading"
	StateTranscribing AnalysisState = "transcribing"
	StateSummarizing  AnalysisState = "summarizing"
	StateFailure      AnalysisState = "failure"
)

// ActiveStates lists the states in which a worker owns the attempt.
var ActiveStates = []AnalysisState{StateDownloading, StateTranscribing, StateSummarizing}

var allStates = []AnalysisState{StateIdle, StateDownloading, StateTranscribing, StateSummarizing, StateFailure}

// AllStates returns every analysis state in lifecycle order.
func AllStates() []AnalysisState {
	out := make([]AnalysisState, len(allStates))
	copy(out, allStates)
	return out
}

// Valid reports whether s is a known state.
func (s AnalysisState) Valid() bool {
	for _, candidate := range allStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// Active reports whether s is a working state.
func (s AnalysisState) Active() bool {
	for _, candidate := range ActiveStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// JobStatus tracks a dispatched stage job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Lecture is an ingested lecture recording in one language.
type Lecture struct {
	ID             int64
	PublicID       string
	Language       string
	Title          string
	MediaPath      string
	TranscriptPath string
	SummaryText    string
	Overview       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Analysis is one processing attempt for a lecture. CompletedStage is the
// working state of the last stage that finished, empty until one does.
type Analysis struct {
	ID             int64
	LectureID      int64
	State          AnalysisState
	Progress       int
	FailureReason  string
	CompletedStage AnalysisState
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastHeartbeat  *time.Time
}

// Query is a cached question/answer pair. Response is nil until answered.
type Query struct {
	ID          int64
	LectureID   int64
	QueryString string
	Fingerprint string
	Response    *string
	CreatedAt   time.Time
	AnsweredAt  *time.Time
}

// Answered reports whether the query carries a response.
func (q *Query) Answered() bool {
	return q != nil && q.Response != nil
}

// Job is a persisted stage job.
type Job struct {
	ID            int64
	Kind          string
	LectureID     int64
	AnalysisID    int64
	Status        JobStatus
	Attempts      int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastHeartbeat *time.Time
}

// DatabaseHealth describes the database for diagnostics.
type DatabaseHealth struct {
	DBPath            string
	DatabaseExists    bool
	DatabaseReadable  bool
	IntegrityOK       bool
	AppliedMigrations []string
	MissingTables     []string
	Error             string
}
