package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kthgpt/internal/config"
	"kthgpt/internal/store"
	"kthgpt/internal/testsupport"
)

func TestLectureAddAndList(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "lecture", "add", "0_abc123", "--language", "sv", "--title", "Termodynamik")
	if !strings.Contains(out, "Added lecture 0_abc123 (Swedish)") {
		t.Fatalf("unexpected add output: %q", out)
	}

	if _, _, err := env.run(t, "lecture", "add", "0_abc123", "-l", "swedish"); err == nil {
		t.Fatal("expected duplicate lecture to be rejected")
	}

	out = env.mustRun(t, "lecture", "list")
	for _, want := range []string{"0_abc123", "sv", "Termodynamik", "Idle", "0%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("list output missing %q:\n%s", want, out)
		}
	}
}

func TestLectureAddRejectsUnsupportedLanguage(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := env.run(t, "lecture", "add", "0_abc123", "--language", "de"); err == nil {
		t.Fatal("expected unsupported language error")
	}
}

func TestProcessQueuesDownloadJob(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "lecture", "add", "0_abc123")

	out := env.mustRun(t, "process", "0_abc123")
	if !strings.Contains(out, "Queued lecture 0_abc123") {
		t.Fatalf("unexpected process output: %q", out)
	}

	if _, _, err := env.run(t, "process", "0_abc123"); err == nil || !strings.Contains(err.Error(), "already being processed") {
		t.Fatalf("expected conflict, got %v", err)
	}

	out = env.mustRun(t, "jobs", "list", "--status", "queued")
	if !strings.Contains(out, "download") || !strings.Contains(out, "queued") {
		t.Fatalf("expected queued download job:\n%s", out)
	}

	out = env.mustRun(t, "status", "0_abc123")
	if !strings.Contains(out, "Downloading at 1%") {
		t.Fatalf("unexpected status output:\n%s", out)
	}
}

func TestProcessUnknownLecture(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := env.run(t, "process", "missing")
	if err == nil || !strings.Contains(err.Error(), "lecture missing") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestStatusTotals(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "lecture", "add", "0_abc123")
	env.mustRun(t, "process", "0_abc123")

	out := env.mustRun(t, "status")
	for _, want := range []string{"Downloading", "Failure", "Summarizing"} {
		if !strings.Contains(out, want) {
			t.Fatalf("totals output missing %q:\n%s", want, out)
		}
	}
}

func TestQueryAnswersAndCaches(t *testing.T) {
	env := setupCLITestEnv(t)
	st := testsupport.MustOpenStore(t, env.cfg)
	testsupport.NewSummarizedLecture(t, st, "0_abc123", "en", "The lecture covers the second law.")

	out := env.mustRun(t, "query", "0_abc123", "What", "is", "entropy?")
	if strings.TrimSpace(out) != "Entropy always increases." {
		t.Fatalf("unexpected answer: %q", out)
	}

	out, errOut, err := env.run(t, "query", "0_abc123", "What is entropy?")
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if strings.TrimSpace(out) != "Entropy always increases." {
		t.Fatalf("unexpected cached answer: %q", out)
	}
	if !strings.Contains(errOut, "cached answer") {
		t.Fatalf("expected cached notice, got %q", errOut)
	}
	if got := env.llmCalls.Load(); got != 1 {
		t.Fatalf("expected one backend call, got %d", got)
	}

	env.mustRun(t, "query", "--override", "0_abc123", "What is entropy?")
	if got := env.llmCalls.Load(); got != 2 {
		t.Fatalf("expected override to reach the backend, got %d calls", got)
	}

	out = env.mustRun(t, "history", "0_abc123")
	if strings.Count(out, "What is entropy?") != 2 {
		t.Fatalf("expected two history rows:\n%s", out)
	}
}

func TestQueryUnknownLecture(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := env.run(t, "query", "missing", "anything")
	if err == nil || err.Error() != "lecture not found" {
		t.Fatalf("expected user facing not found error, got %v", err)
	}
}

func TestJobsListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := env.run(t, "jobs", "list", "--status", "paused"); err == nil {
		t.Fatal("expected unknown status error")
	}
}

func TestConfigInitCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	cmd := newRootCommand()
	cmd.SetOut(new(strings.Builder))
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}

	cmd = newRootCommand()
	cmd.SetOut(new(strings.Builder))
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected existing config to be kept without --overwrite")
	}

	cmd = newRootCommand()
	cmd.SetOut(new(strings.Builder))
	cmd.SetArgs([]string{"config", "init", "--path", target, "--overwrite"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "config", "show")
	if !strings.Contains(out, "# Loaded from "+env.configPath) {
		t.Fatalf("expected source path header:\n%s", out)
	}
	if !strings.Contains(out, redacted) {
		t.Fatalf("expected redacted api key:\n%s", out)
	}
	if strings.Contains(out, "api_key = 'test'") || strings.Contains(out, `api_key = "test"`) {
		t.Fatalf("api key leaked:\n%s", out)
	}
}

func TestRedactSecretsLeavesEmptyValues(t *testing.T) {
	cfg := config.Default()
	cfg.Dispatch.RedisPassword = "hunter2"

	out := redactSecrets(cfg)
	if out.LLM.APIKey != "" {
		t.Fatalf("empty api key should stay empty, got %q", out.LLM.APIKey)
	}
	if out.Dispatch.RedisPassword != redacted {
		t.Fatalf("redis password not redacted: %q", out.Dispatch.RedisPassword)
	}
	if cfg.Dispatch.RedisPassword != "hunter2" {
		t.Fatal("redactSecrets must not modify its input")
	}
}

func TestStateLabelAndKind(t *testing.T) {
	cases := []struct {
		state    store.AnalysisState
		progress int
		label    string
		kind     statusKind
	}{
		{store.StateIdle, 0, "Idle", statusInfo},
		{store.StateIdle, 100, "Idle", statusOK},
		{store.StateTranscribing, 2, "Transcribing", statusWarn},
		{store.StateFailure, 1, "Failure", statusError},
	}
	for _, tc := range cases {
		if got := stateLabel(tc.state); got != tc.label {
			t.Fatalf("stateLabel(%s) = %q, want %q", tc.state, got, tc.label)
		}
		if got := stateKind(tc.state, tc.progress); got != tc.kind {
			t.Fatalf("stateKind(%s, %d) = %v, want %v", tc.state, tc.progress, got, tc.kind)
		}
	}
	if got := stateLabel(""); got != "-" {
		t.Fatalf("empty state label = %q", got)
	}
}

func TestCheckReportsFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Media.FFmpegBinary = filepath.Join(testsupport.BaseDir(env.cfg), "missing-ffmpeg")
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := env.run(t, "check")
	if err == nil {
		t.Fatal("expected check to fail with a missing ffmpeg")
	}
	if !strings.Contains(out, "AI backend") || !strings.Contains(out, "[ERROR]") {
		t.Fatalf("unexpected check output:\n%s", out)
	}
}
