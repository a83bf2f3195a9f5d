// Package pipeline turns a lecture id into a summarized lecture.
//
// The Orchestrator opens an analysis attempt and dispatches its first job.
// Workers hand claimed jobs back to Run, which executes the matching stage
// (download, transcribe, summarize) through stageexec and dispatches the next
// one. Every stage either completes its attempt at idle/100 or leaves it in
// failure with a reason; a job for a superseded or failed attempt is skipped.
package pipeline
