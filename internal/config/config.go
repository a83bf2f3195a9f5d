package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	StorageDir string `toml:"storage_dir"`
	LogDir     string `toml:"log_dir"`
}

// LLM contains AI backend connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Query contains the retry policy applied to lecture questions.
type Query struct {
	TimeToLive     int   `toml:"time_to_live"`
	MaxRetries     int   `toml:"max_retries"`
	RetryIntervals []int `toml:"retry_intervals"`
}

// Summary contains chunking and retry settings for lecture summarization.
type Summary struct {
	TimeToLive     int   `toml:"time_to_live"`
	MaxRetries     int   `toml:"max_retries"`
	RetryIntervals []int `toml:"retry_intervals"`
	ChunkWords     int   `toml:"chunk_words"`
	SummaryWords   int   `toml:"summary_words"`
	OverviewWords  int   `toml:"overview_words"`
}

// Media contains playback resolution and download settings.
type Media struct {
	PlaybackURLTemplate string `toml:"playback_url_template"`
	UserAgent           string `toml:"user_agent"`
	ManifestTimeout     int    `toml:"manifest_timeout"`
	DownloadTimeout     int    `toml:"download_timeout"`
	FFmpegBinary        string `toml:"ffmpeg_binary"`
	FFprobeBinary       string `toml:"ffprobe_binary"`
}

// Transcription contains the external transcriber invocation.
type Transcription struct {
	Command []string `toml:"command"`
	Timeout int      `toml:"timeout"`
}

// Dispatch selects the job queue backend.
type Dispatch struct {
	Backend       string `toml:"backend"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisQueue    string `toml:"redis_queue"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for kthgpt.
//
// Configuration sections by subsystem:
//   - Paths: database, media storage, and log directories
//   - LLM: AI backend connection settings
//   - Query: retry policy for questions
//   - Summary: chunking and retry policy for summarization
//   - Media: playback page resolution and ffmpeg download
//   - Transcription: external transcriber command
//   - Dispatch: sqlite or redis job queue
//   - Workflow: daemon polling intervals and heartbeats
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	Query         Query         `toml:"query"`
	Summary       Summary       `toml:"summary"`
	Media         Media         `toml:"media"`
	Transcription Transcription `toml:"transcription"`
	Dispatch      Dispatch      `toml:"dispatch"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// RetryPolicy is the resolved form of a retry section.
type RetryPolicy struct {
	TimeToLive time.Duration
	MaxRetries int
	Intervals  []time.Duration
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/kthgpt/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("kthgpt.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StorageDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "kthgpt.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "kthgpt.lock")
}

// QueryPolicy returns the retry policy for question answering.
func (c *Config) QueryPolicy() RetryPolicy {
	return newPolicy(c.Query.TimeToLive, c.Query.MaxRetries, c.Query.RetryIntervals)
}

// SummaryPolicy returns the retry policy for summarization calls.
func (c *Config) SummaryPolicy() RetryPolicy {
	return newPolicy(c.Summary.TimeToLive, c.Summary.MaxRetries, c.Summary.RetryIntervals)
}

func newPolicy(ttlSeconds, maxRetries int, intervals []int) RetryPolicy {
	policy := RetryPolicy{
		TimeToLive: time.Duration(ttlSeconds) * time.Second,
		MaxRetries: maxRetries,
		Intervals:  make([]time.Duration, 0, len(intervals)),
	}
	for _, seconds := range intervals {
		policy.Intervals = append(policy.Intervals, time.Duration(seconds)*time.Second)
	}
	return policy
}

// DownloadTimeout bounds one media download stage.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Media.DownloadTimeout) * time.Second
}

// TranscriptionTimeout bounds one transcriber run.
func (c *Config) TranscriptionTimeout() time.Duration {
	return time.Duration(c.Transcription.Timeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
