package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"kthgpt/internal/config"
	"kthgpt/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	llmCalls   *atomic.Int32
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	calls := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Entropy always increases."},"finish_reason":"stop"}]}`))
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithLLMEndpoint(server.URL))
	cfg.Logging.Level = "error"
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, llmCalls: calls}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// run executes the CLI against the environment's config and returns stdout
// and stderr.
func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()

	out, errOut, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("kthgpt %v: %v (stderr: %s)", args, err, errOut)
	}
	return out
}
