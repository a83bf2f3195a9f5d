// Package llm provides the retrying AI backend client used for lecture
// questions and summarization.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Generate: send a prompt, receive the completion text verbatim.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// Each Generate call makes at most Options.MaxRetries+1 attempts. Network
// errors, HTTP 408/429/5xx, backend-reported errors, and empty completions
// are retried after the configured interval; when retries outnumber the
// intervals the last interval repeats. Other 4xx responses and refusals fail
// immediately. Options.TimeToLive bounds the whole call, and caller
// cancellation aborts waits at once. Retry state is never shared between
// calls.
//
// # Errors
//
// Exhausted or final failures are *BackendError (errors.Is ErrBackend) when
// the backend answered, and *TransportError (errors.Is ErrTransport, plus
// ErrTimeout when the time-to-live elapsed) when it could not be reached.
package llm
