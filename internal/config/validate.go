package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRetry("query", c.Query.TimeToLive, c.Query.MaxRetries, c.Query.RetryIntervals); err != nil {
		return err
	}
	if err := c.validateRetry("summary", c.Summary.TimeToLive, c.Summary.MaxRetries, c.Summary.RetryIntervals); err != nil {
		return err
	}
	if err := c.validateSummary(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRetry(section string, ttl, maxRetries int, intervals []int) error {
	if ttl <= 0 {
		return fmt.Errorf("%s.time_to_live must be positive (seconds)", section)
	}
	if maxRetries < 0 {
		return fmt.Errorf("%s.max_retries must be >= 0", section)
	}
	for i, value := range intervals {
		if value < 0 {
			return fmt.Errorf("%s.retry_intervals[%d] must be >= 0", section, i)
		}
	}
	return nil
}

func (c *Config) validateSummary() error {
	return ensurePositiveMap(map[string]int{
		"summary.chunk_words":    c.Summary.ChunkWords,
		"summary.summary_words":  c.Summary.SummaryWords,
		"summary.overview_words": c.Summary.OverviewWords,
	})
}

func (c *Config) validateMedia() error {
	if !strings.Contains(c.Media.PlaybackURLTemplate, "{public_id}") {
		return errors.New("media.playback_url_template must contain {public_id}")
	}
	return ensurePositiveMap(map[string]int{
		"media.manifest_timeout": c.Media.ManifestTimeout,
		"media.download_timeout": c.Media.DownloadTimeout,
		"transcription.timeout":  c.Transcription.Timeout,
		"llm.timeout_seconds":    c.LLM.TimeoutSeconds,
	})
}

func (c *Config) validateDispatch() error {
	switch c.Dispatch.Backend {
	case "sqlite":
		return nil
	case "redis":
		if c.Dispatch.RedisAddr == "" {
			return errors.New("dispatch.redis_addr must be set when dispatch.backend is redis")
		}
		if c.Dispatch.RedisDB < 0 {
			return errors.New("dispatch.redis_db must be >= 0")
		}
		return nil
	default:
		return fmt.Errorf("dispatch.backend: unsupported value %q (use sqlite or redis)", c.Dispatch.Backend)
	}
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.poll_interval":        c.Workflow.PollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
