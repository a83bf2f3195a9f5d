package pipeline

import (
	"context"
	"os"

	"kthgpt/internal/config"
	"kthgpt/internal/media"
	"kthgpt/internal/media/ffprobe"
	"kthgpt/internal/services"
	"kthgpt/internal/stage"
)

const (
	progressPlayback = 1
	progressManifest = 2
	progressDownload = 3
)

// Prober inspects a downloaded recording.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

type downloadStage struct {
	cfg        *config.Config
	resolver   media.Resolver
	downloader media.Downloader
	prober     Prober
}

func newDownloadStage(cfg *config.Config, resolver media.Resolver, downloader media.Downloader, prober Prober) *downloadStage {
	return &downloadStage{cfg: cfg, resolver: resolver, downloader: downloader, prober: prober}
}

func (d *downloadStage) Prepare(_ context.Context, work *stage.Work) error {
	if d.resolver == nil || d.downloader == nil {
		return services.Wrap(services.ErrConfiguration, "downloading", "prepare", "media resolver and downloader are required", nil)
	}
	if work.Lecture.PublicID == "" {
		return services.Wrap(services.ErrValidation, "downloading", "prepare", "lecture has no public id", nil)
	}
	return nil
}

// Execute resolves the playback page, its manifest, and then downloads the
// stream. Each marker is persisted before the sub-step starts.
func (d *downloadStage) Execute(ctx context.Context, work *stage.Work) error {
	if err := work.Advance(ctx, progressPlayback); err != nil {
		return err
	}
	playbackURL, err := d.resolver.ResolvePlaybackURL(ctx, work.Lecture.PublicID)
	if err != nil {
		return err
	}

	if err := work.Advance(ctx, progressManifest); err != nil {
		return err
	}
	manifestURL, err := d.resolver.ResolveManifest(ctx, playbackURL)
	if err != nil {
		return err
	}

	if err := work.Advance(ctx, progressDownload); err != nil {
		return err
	}
	dest := media.MediaPath(d.cfg.Paths.StorageDir, work.Lecture.PublicID, work.Lecture.Language)
	downloadCtx := ctx
	if timeout := d.cfg.DownloadTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		downloadCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := d.downloader.Download(downloadCtx, manifestURL, dest); err != nil {
		return err
	}
	if err := d.verify(ctx, dest); err != nil {
		_ = os.Remove(dest)
		return err
	}
	work.Lecture.MediaPath = dest
	return nil
}

// verify rejects recordings without audio. Skipped when no prober is wired.
func (d *downloadStage) verify(ctx context.Context, path string) error {
	if d.prober == nil {
		return nil
	}
	result, err := d.prober.Inspect(ctx, path)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "downloading", "probe", "inspect recording", err)
	}
	if result.AudioStreamCount() == 0 {
		return services.Wrap(services.ErrExternalTool, "downloading", "probe", "recording has no audio track", nil)
	}
	return nil
}

func (d *downloadStage) HealthCheck(context.Context) stage.Health {
	const name = "download"
	if d.resolver == nil || d.downloader == nil {
		return stage.Unhealthy(name, "media resolver or downloader not configured")
	}
	return stage.Healthy(name)
}
