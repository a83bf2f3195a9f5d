package llm

import (
	"fmt"
	"strings"

	"kthgpt/internal/services"
)

// BackendError reports that the backend answered but refused or failed the
// request: authentication, validation, refusal, or exhausted server errors.
type BackendError struct {
	StatusCode    int
	Message       string
	Refusal       string
	Attempts      int
	CorrelationID string
}

func (e *BackendError) Error() string {
	var b strings.Builder
	b.WriteString("ai backend error")
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": http %d", e.StatusCode)
	}
	if e.Refusal != "" {
		fmt.Fprintf(&b, ": refused: %s", e.Refusal)
	} else if msg := strings.TrimSpace(e.Message); msg != "" {
		fmt.Fprintf(&b, ": %s", summarizePayloadSnippet(msg))
	}
	fmt.Fprintf(&b, " (attempts=%d, correlation_id=%s)", e.Attempts, e.CorrelationID)
	return b.String()
}

// Is lets callers match with errors.Is(err, services.ErrBackend).
func (e *BackendError) Is(target error) bool {
	return target == services.ErrBackend
}

// TransportError reports that the backend could not be reached or did not
// answer within the time-to-live.
type TransportError struct {
	Attempts      int
	CorrelationID string
	Timeout       bool
	Err           error
}

func (e *TransportError) Error() string {
	reason := "unreachable"
	if e.Timeout {
		reason = "time-to-live exceeded"
	}
	if e.Err != nil {
		return fmt.Sprintf("ai transport error: %s (attempts=%d, correlation_id=%s): %v", reason, e.Attempts, e.CorrelationID, e.Err)
	}
	return fmt.Sprintf("ai transport error: %s (attempts=%d, correlation_id=%s)", reason, e.Attempts, e.CorrelationID)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets callers match with errors.Is(err, services.ErrTransport), and with
// services.ErrTimeout when the time-to-live elapsed.
func (e *TransportError) Is(target error) bool {
	if target == services.ErrTransport {
		return true
	}
	return e.Timeout && target == services.ErrTimeout
}
