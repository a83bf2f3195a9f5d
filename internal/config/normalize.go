package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeMedia()
	c.normalizeTranscription()
	c.normalizeDispatch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		c.Paths.StorageDir = defaultStorageDir
	}
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		for _, name := range []string{"KTHGPT_LLM_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY"} {
			if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
				c.LLM.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
}

func (c *Config) normalizeMedia() {
	c.Media.PlaybackURLTemplate = strings.TrimSpace(c.Media.PlaybackURLTemplate)
	if c.Media.PlaybackURLTemplate == "" {
		c.Media.PlaybackURLTemplate = defaultPlaybackURLTemplate
	}
	c.Media.UserAgent = strings.TrimSpace(c.Media.UserAgent)
	if c.Media.UserAgent == "" {
		c.Media.UserAgent = defaultUserAgent
	}
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeTranscription() {
	cmd := make([]string, 0, len(c.Transcription.Command))
	for _, part := range c.Transcription.Command {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cmd = append(cmd, trimmed)
		}
	}
	if len(cmd) == 0 {
		cmd = append(cmd, defaultTranscribeCommand...)
	}
	c.Transcription.Command = cmd
}

func (c *Config) normalizeDispatch() {
	c.Dispatch.Backend = strings.ToLower(strings.TrimSpace(c.Dispatch.Backend))
	if c.Dispatch.Backend == "" {
		c.Dispatch.Backend = defaultDispatchBackend
	}
	c.Dispatch.RedisAddr = strings.TrimSpace(c.Dispatch.RedisAddr)
	if c.Dispatch.RedisAddr == "" {
		c.Dispatch.RedisAddr = defaultRedisAddr
	}
	c.Dispatch.RedisQueue = strings.TrimSpace(c.Dispatch.RedisQueue)
	if c.Dispatch.RedisQueue == "" {
		c.Dispatch.RedisQueue = defaultRedisQueue
	}
	if c.Dispatch.RedisPassword == "" {
		if value, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
			c.Dispatch.RedisPassword = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
