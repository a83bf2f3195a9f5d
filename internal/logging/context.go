package logging

import (
	"context"
	"log/slog"

	"kthgpt/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldLectureID is the key for the lecture's public identifier.
	FieldLectureID = "lecture_id"
	// FieldAnalysisID is the key for analysis attempt row ids.
	FieldAnalysisID = "analysis_id"
	// FieldStage is the key for pipeline stage names.
	FieldStage = "stage"
	// FieldCorrelationID is the key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a warning or error for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.LectureIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldLectureID, id))
	}
	if id, ok := services.AnalysisIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldAnalysisID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
