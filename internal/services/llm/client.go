package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"kthgpt/internal/logging"
	"kthgpt/internal/services"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 120 * time.Second
	defaultTemperature = 0.7
	healthTimeToLive   = 30 * time.Second
)

// Config captures the runtime settings required to talk to the AI backend.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Options controls a single Generate invocation.
type Options struct {
	// TimeToLive bounds the whole invocation, retries and waits included.
	// Zero means no horizon beyond the caller's context.
	TimeToLive time.Duration
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// RetryIntervals is the wait before each retry. When retries outnumber the
	// intervals the last one repeats; an empty list retries immediately.
	RetryIntervals []time.Duration
	// CorrelationID tags logs and the outbound request. A uuid is generated
	// when empty.
	CorrelationID string
}

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	newTimer   func() backoff.Timer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "llm")
	}
}

// WithTimerFactory overrides how retry waits are timed (useful for tests).
// The factory is called once per Generate invocation.
func WithTimerFactory(factory func() backoff.Timer) Option {
	return func(c *Client) {
		c.newTimer = factory
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

// Generate sends prompt to the backend and returns the completion text
// verbatim. Transient failures are retried per opts; once attempts are
// exhausted the error is a *BackendError or a *TransportError.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: llm generate: prompt required", services.ErrValidation)
	}
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: llm generate: api key required", services.ErrConfiguration)
	}

	correlationID := strings.TrimSpace(opts.CorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	parent := services.WithRequestID(ctx, correlationID)
	logger := logging.WithContext(parent, c.logger)

	attemptCtx := parent
	if opts.TimeToLive > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(parent, opts.TimeToLive)
		defer cancel()
	}

	payload := chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: defaultTemperature,
	}

	var (
		attempts int
		content  string
		lastErr  error
	)
	operation := func() error {
		attempts++
		text, err := c.attempt(attemptCtx, payload, correlationID)
		if err == nil {
			content = text
			return nil
		}
		lastErr = err
		if attemptCtx.Err() != nil || !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logging.WarnWithContext(logger, "ai backend attempt failed; retrying", "llm_retry",
			logging.Int("attempt", attempts),
			logging.Int("max_attempts", opts.MaxRetries+1),
			logging.Duration("wait", wait),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check backend status and rate limits"),
			logging.String(logging.FieldImpact, "response delayed until the retry completes"),
		)
	}

	var timer backoff.Timer
	if c.newTimer != nil {
		timer = c.newTimer()
	}
	policy := backoff.WithContext(newIntervalBackOff(opts.MaxRetries, opts.RetryIntervals), attemptCtx)
	if err := backoff.RetryNotifyWithTimer(operation, policy, notify, timer); err != nil {
		return "", c.classify(parent, attemptCtx, lastErr, err, attempts, correlationID)
	}
	logger.Debug("ai backend call succeeded", logging.Int("attempts", attempts))
	return content, nil
}

// HealthCheck issues one short completion to verify the API key and model.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.Generate(ctx, "Reply with the single word OK.", Options{TimeToLive: healthTimeToLive})
	if err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return errors.New("llm health: empty response")
	}
	return nil
}

func (c *Client) classify(parent, attemptCtx context.Context, lastErr, retryErr error, attempts int, correlationID string) error {
	if parentErr := parent.Err(); parentErr != nil {
		return &TransportError{Attempts: attempts, CorrelationID: correlationID, Err: parentErr}
	}
	if attemptCtx.Err() != nil {
		cause := lastErr
		if cause == nil {
			cause = attemptCtx.Err()
		}
		return &TransportError{Attempts: attempts, CorrelationID: correlationID, Timeout: true, Err: cause}
	}
	if lastErr == nil {
		lastErr = retryErr
	}

	var statusErr *httpStatusError
	if errors.As(lastErr, &statusErr) {
		return &BackendError{
			StatusCode:    statusErr.StatusCode,
			Message:       statusErr.Body,
			Attempts:      attempts,
			CorrelationID: correlationID,
		}
	}
	var apiErr *apiError
	if errors.As(lastErr, &apiErr) {
		return &BackendError{Message: apiErr.Message, Attempts: attempts, CorrelationID: correlationID}
	}
	var emptyErr *emptyContentError
	if errors.As(lastErr, &emptyErr) {
		return &BackendError{
			Message:       emptyErr.Error(),
			Refusal:       emptyErr.Refusal,
			Attempts:      attempts,
			CorrelationID: correlationID,
		}
	}
	return &TransportError{Attempts: attempts, CorrelationID: correlationID, Err: lastErr}
}
