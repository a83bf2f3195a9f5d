// Package transcript turns a lecture recording into plain text by running an
// external speech-to-text command.
package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"kthgpt/internal/config"
	"kthgpt/internal/services"
	"kthgpt/internal/textutil"
)

const (
	inputPlaceholder    = "{input}"
	languagePlaceholder = "{language}"
)

// Transcriber produces the transcript of a media file.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath, language string) (string, error)
}

// CommandRunner executes name with args and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecTranscriber runs a configured command whose stdout is the transcript.
type ExecTranscriber struct {
	command       []string
	timeout       time.Duration
	commandRunner CommandRunner
}

// NewExecTranscriber constructs a transcriber from config.
func NewExecTranscriber(cfg config.Transcription) *ExecTranscriber {
	command := make([]string, len(cfg.Command))
	copy(command, cfg.Command)
	return &ExecTranscriber{
		command:       command,
		timeout:       time.Duration(cfg.Timeout) * time.Second,
		commandRunner: defaultCommandRunner,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (t *ExecTranscriber) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		t.commandRunner = runner
	}
}

// Binary returns the executable the transcriber runs.
func (t *ExecTranscriber) Binary() string {
	if len(t.command) == 0 {
		return ""
	}
	return t.command[0]
}

// Transcribe runs the command against mediaPath. The {input} placeholder is
// replaced with the media path (appended when absent) and {language} with the
// lecture language.
func (t *ExecTranscriber) Transcribe(ctx context.Context, mediaPath, language string) (string, error) {
	if len(t.command) == 0 || strings.TrimSpace(t.command[0]) == "" {
		return "", services.Wrap(services.ErrConfiguration, "transcribing", "transcribe", "transcription.command is empty", nil)
	}
	if _, err := os.Stat(mediaPath); err != nil {
		return "", services.Wrap(services.ErrValidation, "transcribing", "transcribe", "media file unavailable", err)
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	args := buildArgs(t.command[1:], mediaPath, language)
	out, err := t.commandRunner(ctx, t.command[0], args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "transcribing", "transcribe", "transcriber timed out", err)
		}
		return "", services.Wrap(services.ErrExternalTool, "transcribing", "transcribe", "transcriber failed", err)
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", services.Wrap(services.ErrExternalTool, "transcribing", "transcribe", "transcriber produced no text", nil)
	}
	return text, nil
}

func buildArgs(template []string, mediaPath, language string) []string {
	args := make([]string, 0, len(template)+1)
	substituted := false
	for _, arg := range template {
		if strings.Contains(arg, inputPlaceholder) {
			substituted = true
		}
		arg = strings.ReplaceAll(arg, inputPlaceholder, mediaPath)
		arg = strings.ReplaceAll(arg, languagePlaceholder, language)
		args = append(args, arg)
	}
	if !substituted {
		args = append(args, mediaPath)
	}
	return args
}

// Write stores text at path atomically.
func Write(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize transcript: %w", err)
	}
	return nil
}

// Read loads a transcript written by Write.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(data), nil
}

// Chunk splits text into word-bounded pieces of at most words words.
func Chunk(text string, words int) []string {
	return textutil.ChunkWords(text, words)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, textutil.Truncate(strings.TrimSpace(stderr.String()), 400))
	}
	return stdout.Bytes(), nil
}
