// Package jobs moves pipeline stage work between the process that starts an
// analysis and the worker that runs it.
//
// Delivery is at least once: a job whose worker stops sending heartbeats goes
// back on the queue, so stage handlers must tolerate redelivery.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind names a pipeline stage job.
type Kind string

const (
	KindDownload   Kind = "download"
	KindTranscribe Kind = "transcribe"
	KindSummarize  Kind = "summarize"
)

// Kinds lists job kinds in pipeline order.
var Kinds = []Kind{KindDownload, KindTranscribe, KindSummarize}

// ParseKind validates a job kind string.
func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Kinds {
		if kind == known {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown job kind %q", value)
}

// Descriptor identifies the work a job carries.
type Descriptor struct {
	Kind       Kind  `json:"kind"`
	LectureID  int64 `json:"lecture_id"`
	AnalysisID int64 `json:"analysis_id"`
}

// Delivery is a claimed job. ID is backend specific.
type Delivery struct {
	ID       string
	Attempts int
	Descriptor

	raw string
}

// Dispatcher enqueues jobs without waiting for them to run.
type Dispatcher interface {
	Enqueue(ctx context.Context, desc Descriptor) error
}

// Source hands claimed jobs to a worker and records their outcome.
type Source interface {
	// Claim returns the next job or nil when none is waiting.
	Claim(ctx context.Context) (*Delivery, error)
	Complete(ctx context.Context, d *Delivery) error
	Fail(ctx context.Context, d *Delivery, reason string) error
	Touch(ctx context.Context, d *Delivery) error
	// RequeueStale returns claimed jobs whose heartbeat is older than cutoff
	// to the queue.
	RequeueStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Queue is both ends of a job backend.
type Queue interface {
	Dispatcher
	Source
}

func validate(desc Descriptor) error {
	if _, err := ParseKind(string(desc.Kind)); err != nil {
		return err
	}
	if desc.LectureID <= 0 || desc.AnalysisID <= 0 {
		return fmt.Errorf("job %s requires lecture and analysis ids", desc.Kind)
	}
	return nil
}
