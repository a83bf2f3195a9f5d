package workflow

import (
	"context"

	"kthgpt/internal/jobs"
	"kthgpt/internal/logging"
	"kthgpt/internal/stage"
	"kthgpt/internal/store"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running       bool
	LastError     string
	LastJob       *jobs.Delivery
	JobsProcessed int64
	JobsFailed    int64
	AnalysisStats map[store.AnalysisState]int
	StageHealth   map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:       m.running,
		JobsProcessed: m.processed,
		JobsFailed:    m.failed,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastJob != nil {
		copy := *m.lastJob
		summary.LastJob = &copy
	}
	m.mu.RUnlock()

	if m.attempts != nil {
		stats, err := m.attempts.Stats(ctx)
		if err != nil {
			m.logger.Warn("failed to read analysis stats", logging.Error(err))
		}
		summary.AnalysisStats = stats
	}

	if m.runner != nil {
		health := m.runner.HealthCheck(ctx)
		summary.StageHealth = make(map[string]stage.Health, len(health))
		for _, entry := range health {
			summary.StageHealth[entry.Name] = entry
		}
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(delivery *jobs.Delivery) {
	m.mu.Lock()
	if delivery != nil {
		copy := *delivery
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}

func (m *Manager) count(ok bool) {
	m.mu.Lock()
	if ok {
		m.processed++
	} else {
		m.failed++
	}
	m.mu.Unlock()
}
