package llm

import (
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// intervalBackOff yields a fixed wait sequence and stops after maxRetries.
type intervalBackOff struct {
	intervals  []time.Duration
	maxRetries int
	retries    int
}

func newIntervalBackOff(maxRetries int, intervals []time.Duration) *intervalBackOff {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &intervalBackOff{intervals: intervals, maxRetries: maxRetries}
}

func (b *intervalBackOff) NextBackOff() time.Duration {
	if b.retries >= b.maxRetries {
		return backoff.Stop
	}
	var wait time.Duration
	switch {
	case len(b.intervals) == 0:
	case b.retries < len(b.intervals):
		wait = b.intervals[b.retries]
	default:
		wait = b.intervals[len(b.intervals)-1]
	}
	b.retries++
	return max(wait, 0)
}

func (b *intervalBackOff) Reset() {
	b.retries = 0
}

// retryable reports whether err is worth another attempt. Refusals and
// client errors other than 408/429 are final.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	var emptyErr *emptyContentError
	if errors.As(err, &emptyErr) {
		return emptyErr.Refusal == ""
	}
	return true
}
