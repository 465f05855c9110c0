package runstore

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/rulebook/pkg/config"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Open creates the store selected by cfg.Backend.
func Open(ctx context.Context, cfg *config.StoreConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(cfg.MaxRecords), nil
	case BackendSQLite:
		return NewSQLiteStore(&SQLiteConfig{
			Path:         cfg.SQLite.Path,
			JournalMode:  cfg.SQLite.JournalMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
		}, logger)
	case BackendPostgres:
		return NewPostgresStore(ctx, &PostgresConfig{
			DSN:          cfg.Postgres.DSN,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			Migrate:      cfg.Postgres.Migrate,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
