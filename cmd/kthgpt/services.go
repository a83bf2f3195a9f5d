package main

import (
	"context"
	"fmt"
	"log/slog"

	"kthgpt/internal/cache"
	"kthgpt/internal/config"
	"kthgpt/internal/jobs"
	"kthgpt/internal/media"
	"kthgpt/internal/media/ffprobe"
	"kthgpt/internal/pipeline"
	"kthgpt/internal/query"
	"kthgpt/internal/services/llm"
	"kthgpt/internal/store"
	"kthgpt/internal/summary"
	"kthgpt/internal/transcript"
)

func newLLMClient(cfg *config.Config, logger *slog.Logger) *llm.Client {
	return llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}, llm.WithLogger(logger))
}

func newQueryService(cfg *config.Config, st *store.Store, backend query.Generator, logger *slog.Logger) *query.Service {
	return query.NewService(cache.New(st), st, backend, cfg.QueryPolicy(), logger)
}

// processingStack is everything needed to start and run lecture processing.
type processingStack struct {
	backend      jobs.Backend
	orchestrator *pipeline.Orchestrator
}

func (p *processingStack) Close() error {
	if p == nil || p.backend == nil {
		return nil
	}
	return p.backend.Close()
}

func newProcessingStack(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*processingStack, error) {
	backend, err := jobs.NewFromConfig(ctx, cfg, st)
	if err != nil {
		return nil, fmt.Errorf("open job queue: %w", err)
	}
	orchestrator, err := pipeline.New(pipeline.Dependencies{
		Config:      cfg,
		Store:       st,
		Dispatcher:  backend,
		Resolver:    media.NewHTTPResolver(cfg.Media, nil),
		Downloader:  media.NewFFmpegDownloader(cfg.Media.FFmpegBinary, cfg.Media.UserAgent),
		Prober:      ffprobe.NewProber(cfg.Media.FFprobeBinary),
		Transcriber: transcript.NewExecTranscriber(cfg.Transcription),
		Summarizer:  summary.New(newLLMClient(cfg, logger), cfg, logger),
		Logger:      logger,
	})
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return &processingStack{backend: backend, orchestrator: orchestrator}, nil
}
