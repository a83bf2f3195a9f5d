package analysis

import "kthgpt/internal/store"

const (
	// CompleteProgress marks a finished stage while the attempt is idle.
	CompleteProgress = 100
	baselineProgress = 1
)

// IsActive reports whether a worker owns an attempt in state s.
func IsActive(s store.AnalysisState) bool {
	return s.Active()
}

// Baseline returns the progress a state starts at.
func Baseline(s store.AnalysisState) int {
	if IsActive(s) {
		return baselineProgress
	}
	return 0
}

// CanTransition reports whether an attempt may move from one state to another.
// Staying in an active state is allowed for progress steps.
func CanTransition(from, to store.AnalysisState) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	switch from {
	case store.StateFailure:
		return false
	case store.StateIdle:
		switch to {
		case store.StateTranscribing, store.StateSummarizing, store.StateFailure:
			return true
		}
		return false
	default:
		return to == from || to == store.StateIdle || to == store.StateFailure
	}
}

var stageOrder = []store.AnalysisState{store.StateDownloading, store.StateTranscribing, store.StateSummarizing}

// NextStage returns the working state that follows completed, the last stage
// an idle attempt finished. It reports false once the final stage is done.
func NextStage(completed store.AnalysisState) (store.AnalysisState, bool) {
	if completed == "" {
		return stageOrder[0], true
	}
	for i, state := range stageOrder[:len(stageOrder)-1] {
		if state == completed {
			return stageOrder[i+1], true
		}
	}
	return "", false
}
