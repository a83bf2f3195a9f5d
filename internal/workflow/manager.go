package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"kthgpt/internal/config"
	"kthgpt/internal/jobs"
	"kthgpt/internal/logging"
	"kthgpt/internal/stage"
	"kthgpt/internal/store"
)

// Runner executes one claimed job. *pipeline.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, desc jobs.Descriptor) error
	HealthCheck(ctx context.Context) []stage.Health
}

// Attempts is the analysis persistence the manager needs for heartbeats,
// reaping, and status. *store.Store implements it.
type Attempts interface {
	TouchAnalysis(ctx context.Context, id int64) error
	FailStaleAnalyses(ctx context.Context, cutoff time.Time, reason string) ([]int64, error)
	Stats(ctx context.Context) (map[store.AnalysisState]int, error)
}

// Manager coordinates job processing for the pipeline.
type Manager struct {
	source             jobs.Source
	runner             Runner
	attempts           Attempts
	logger             *slog.Logger
	pollInterval       time.Duration
	errorRetryInterval time.Duration

	heartbeat *HeartbeatMonitor

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastJob   *jobs.Delivery
	processed int64
	failed    int64
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, source jobs.Source, runner Runner, attempts Attempts, logger *slog.Logger) *Manager {
	logger = logging.NewComponentLogger(logger, "workflow")
	return &Manager{
		source:             source,
		runner:             runner,
		attempts:           attempts,
		logger:             logger,
		pollInterval:       seconds(cfg.Workflow.PollInterval),
		errorRetryInterval: seconds(cfg.Workflow.ErrorRetryInterval),
		heartbeat: NewHeartbeatMonitor(
			source,
			attempts,
			logger,
			seconds(cfg.Workflow.HeartbeatInterval),
			seconds(cfg.Workflow.HeartbeatTimeout),
		),
	}
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}
