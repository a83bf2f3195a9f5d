package testsupport

import (
	"path/filepath"
	"testing"

	"kthgpt/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Retry waits are zeroed so tests never sleep on the backend policy.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.StorageDir = filepath.Join(base, "storage")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.LLM.APIKey = "test"
	cfgVal.Query.RetryIntervals = []int{0}
	cfgVal.Summary.RetryIntervals = []int{0}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithLLMEndpoint points the AI backend at a test server.
func WithLLMEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithPlaybackTemplate overrides the playback page template.
func WithPlaybackTemplate(template string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Media.PlaybackURLTemplate = template
	}
}

// WithTranscribeCommand overrides the transcriber command line.
func WithTranscribeCommand(command ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.Command = command
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
