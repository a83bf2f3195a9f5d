package jobs

import (
	"context"
	"fmt"

	"kthgpt/internal/config"
	"kthgpt/internal/store"
)

// Backend is a queue plus the resources it holds.
type Backend interface {
	Queue
	Close() error
}

type sqliteBackend struct {
	*SQLiteQueue
}

func (sqliteBackend) Close() error { return nil }

// NewFromConfig returns the queue selected by dispatch.backend. The sqlite
// backend shares st and closing it leaves st open.
func NewFromConfig(ctx context.Context, cfg *config.Config, st *store.Store) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	switch cfg.Dispatch.Backend {
	case "", "sqlite":
		if st == nil {
			return nil, fmt.Errorf("sqlite dispatch requires a store")
		}
		return sqliteBackend{NewSQLiteQueue(st)}, nil
	case "redis":
		return NewRedisQueue(ctx, cfg.Dispatch)
	default:
		return nil, fmt.Errorf("unsupported dispatch backend %q", cfg.Dispatch.Backend)
	}
}
