package pipeline

import (
	"context"
	"os"
	"strings"

	"kthgpt/internal/config"
	"kthgpt/internal/media"
	"kthgpt/internal/services"
	"kthgpt/internal/stage"
	"kthgpt/internal/transcript"
)

const (
	progressTranscribe      = 1
	progressWriteTranscript = 2
)

type transcribeStage struct {
	cfg         *config.Config
	transcriber transcript.Transcriber
}

func newTranscribeStage(cfg *config.Config, transcriber transcript.Transcriber) *transcribeStage {
	return &transcribeStage{cfg: cfg, transcriber: transcriber}
}

func (t *transcribeStage) Prepare(_ context.Context, work *stage.Work) error {
	if t.transcriber == nil {
		return services.Wrap(services.ErrConfiguration, "transcribing", "prepare", "transcriber is not configured", nil)
	}
	if strings.TrimSpace(work.Lecture.MediaPath) == "" {
		return services.Wrap(services.ErrValidation, "transcribing", "prepare", "lecture has no downloaded media", nil)
	}
	if _, err := os.Stat(work.Lecture.MediaPath); err != nil {
		return services.Wrap(services.ErrValidation, "transcribing", "prepare", "media file unavailable", err)
	}
	return nil
}

func (t *transcribeStage) Execute(ctx context.Context, work *stage.Work) error {
	if err := work.Advance(ctx, progressTranscribe); err != nil {
		return err
	}
	text, err := t.transcriber.Transcribe(ctx, work.Lecture.MediaPath, work.Lecture.Language)
	if err != nil {
		return err
	}

	if err := work.Advance(ctx, progressWriteTranscript); err != nil {
		return err
	}
	dest := media.TranscriptPath(t.cfg.Paths.StorageDir, work.Lecture.PublicID, work.Lecture.Language)
	if err := transcript.Write(dest, text); err != nil {
		return services.Wrap(services.ErrPipeline, "transcribing", "write transcript", "", err)
	}
	work.Lecture.TranscriptPath = dest
	return nil
}

func (t *transcribeStage) HealthCheck(context.Context) stage.Health {
	const name = "transcribe"
	if t.transcriber == nil {
		return stage.Unhealthy(name, "transcriber not configured")
	}
	return stage.Healthy(name)
}
