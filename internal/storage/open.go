// Package storage selects the core.Store implementation named by config.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bridgetrack/bridgetrack/internal/config"
	"github.com/bridgetrack/bridgetrack/internal/core"
	"github.com/bridgetrack/bridgetrack/internal/storage/postgres"
	"github.com/bridgetrack/bridgetrack/internal/storage/sqlite"
)

// Open returns the store for cfg.Driver. The caller owns the returned
// store and must Close it.
func Open(ctx context.Context, cfg config.DatabaseConfig) (core.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory store, records are lost on exit")
		return core.NewMemoryStore(), nil
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		slog.Info("sqlite store opened", "path", cfg.URL)
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.Info("postgres store opened", "max_conns", cfg.MaxConns)
		return s, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
