package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"kthgpt/internal/services"
)

// Downloader saves a streamed lecture to a local file.
type Downloader interface {
	Download(ctx context.Context, manifestURL, dest string) error
}

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// FFmpegDownloader remuxes an HLS stream into an MP4 without re-encoding.
type FFmpegDownloader struct {
	binary        string
	userAgent     string
	commandRunner CommandRunner
}

// NewFFmpegDownloader constructs a downloader around the ffmpeg binary.
func NewFFmpegDownloader(binary, userAgent string) *FFmpegDownloader {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpegDownloader{binary: binary, userAgent: userAgent, commandRunner: defaultCommandRunner}
}

// WithCommandRunner sets a custom command runner (for testing).
func (d *FFmpegDownloader) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		d.commandRunner = runner
	}
}

// Download writes the stream to dest.part and renames it into place once
// ffmpeg exits cleanly, so dest never holds a partial recording.
func (d *FFmpegDownloader) Download(ctx context.Context, manifestURL, dest string) error {
	if strings.TrimSpace(manifestURL) == "" {
		return services.Wrap(services.ErrValidation, "downloading", "download", "manifest url is required", nil)
	}
	if strings.TrimSpace(dest) == "" {
		return services.Wrap(services.ErrValidation, "downloading", "download", "destination is required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "downloading", "download", "create lecture directory", err)
	}

	partial := dest + ".part"
	_ = os.Remove(partial)
	if err := d.commandRunner(ctx, d.binary, buildDownloadArgs(manifestURL, partial, d.userAgent)...); err != nil {
		_ = os.Remove(partial)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return services.Wrap(services.ErrTimeout, "downloading", "download", "download interrupted", errors.Join(ctxErr, err))
		}
		return services.Wrap(services.ErrExternalTool, "downloading", "download", "ffmpeg failed", err)
	}
	info, err := os.Stat(partial)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "downloading", "download", "ffmpeg produced no output", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(partial)
		return services.Wrap(services.ErrExternalTool, "downloading", "download", "ffmpeg produced an empty file", nil)
	}
	if err := os.Rename(partial, dest); err != nil {
		return services.Wrap(services.ErrExternalTool, "downloading", "download", "finalize download", err)
	}
	return nil
}

func buildDownloadArgs(manifestURL, dest, userAgent string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if userAgent != "" {
		args = append(args, "-user_agent", userAgent)
	}
	return append(args,
		"-i", manifestURL,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-f", "mp4",
		dest,
	)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
