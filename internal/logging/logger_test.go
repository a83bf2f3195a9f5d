package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kthgpt/internal/config"
	"kthgpt/internal/logging"
	"kthgpt/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersComponentAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	base, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger := logging.NewComponentLogger(base, "pipeline")
	logger.Info("stage complete", logging.String("stage", "download"), logging.String("reason", "two words"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, fragment := range []string{"INFO", "pipeline: stage complete", "stage=download", `reason="two words"`} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be rendered as prefix, got %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	base, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := context.Background()
	ctx = services.WithLectureID(ctx, "0_abc")
	ctx = services.WithAnalysisID(ctx, 123)
	ctx = services.WithStage(ctx, "download")
	ctx = services.WithRequestID(ctx, "req-xyz")

	logging.WithContext(ctx, base).Info("contextual log")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &record); err != nil {
		t.Fatalf("decode json record: %v", err)
	}
	if record[logging.FieldLectureID] != "0_abc" {
		t.Fatalf("unexpected lecture id: %v", record[logging.FieldLectureID])
	}
	if record[logging.FieldAnalysisID] != float64(123) {
		t.Fatalf("unexpected analysis id: %v", record[logging.FieldAnalysisID])
	}
	if record[logging.FieldStage] != "download" {
		t.Fatalf("unexpected stage: %v", record[logging.FieldStage])
	}
	if record[logging.FieldCorrelationID] != "req-xyz" {
		t.Fatalf("unexpected correlation id: %v", record[logging.FieldCorrelationID])
	}
	if record["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", record["level"])
	}
}

func TestNopLoggerIsSafe(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("ignored")
	logging.WarnWithContext(logger, "ignored", "test")
	logging.WarnWithContext(nil, "ignored", "test")
}

func TestWarnWithContextFillsTriageFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	base, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(base, "queue slow", "queue_slow",
		logging.String(logging.FieldErrorHint, "check redis latency"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &record); err != nil {
		t.Fatalf("decode json record: %v", err)
	}
	if record[logging.FieldEventType] != "queue_slow" {
		t.Fatalf("unexpected event type: %v", record[logging.FieldEventType])
	}
	if record[logging.FieldErrorHint] != "check redis latency" {
		t.Fatalf("caller hint should win, got %v", record[logging.FieldErrorHint])
	}
	if record[logging.FieldImpact] == nil {
		t.Fatal("expected default impact field")
	}
}
