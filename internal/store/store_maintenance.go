package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

var requiredTables = []string{"lectures", "analyses", "queries", "jobs"}

// CheckHealth returns diagnostic information about the database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityOK = integrity == "ok"
	if !health.IntegrityOK {
		health.Error = integrity
	}

	for _, table := range requiredTables {
		var count int
		if err := s.db.QueryRowContext(
			connCtx,
			"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(&count); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("check table %s: %w", table, err)
		}
		if count == 0 {
			health.MissingTables = append(health.MissingTables, table)
		}
	}

	versions, err := s.AppliedMigrations(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.AppliedMigrations = versions
	return health, nil
}
