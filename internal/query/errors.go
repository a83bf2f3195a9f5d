package query

import (
	"errors"
	"fmt"

	"kthgpt/internal/services"
)

// BackendFailure reports that the AI backend could not produce an answer.
// Cause is the *llm.BackendError or *llm.TransportError that ended the call.
type BackendFailure struct {
	Cause error
}

func (e *BackendFailure) Error() string {
	if e.Cause == nil {
		return "query: backend failure"
	}
	return fmt.Sprintf("query: backend failure: %v", e.Cause)
}

func (e *BackendFailure) Unwrap() error { return e.Cause }

// Is matches services.ErrBackend even when the cause was a transport failure.
func (e *BackendFailure) Is(target error) bool {
	return target == services.ErrBackend
}

const genericFailureMessage = "processing failed, please try again later"

// UserMessage returns the text shown to end users for err. Input errors keep
// their message; everything else collapses to a generic notice so operator
// detail stays in logs.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, services.ErrUnsupportedLanguage):
		return "this lecture's language is not supported"
	case errors.Is(err, services.ErrNotFound):
		return "lecture not found"
	case errors.Is(err, services.ErrValidation):
		return "invalid request: " + err.Error()
	default:
		return genericFailureMessage
	}
}
