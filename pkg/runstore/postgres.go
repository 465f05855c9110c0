package runstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// PostgresConfig contains configuration for the PostgreSQL backend.
type PostgresConfig struct {
	// DSN is a lib/pq connection string, in URL or key=value form.
	DSN string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// Migrate applies pending migrations before the store is used.
	Migrate bool
}

// PostgresStore stores reports in PostgreSQL.
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore connects to the database and, when config.Migrate is
// set, brings the schema up to date.
func NewPostgresStore(ctx context.Context, config *PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	if config == nil || config.DSN == "" {
		return nil, NewStorageError("postgres", "open", errors.New("dsn is required"))
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "runstore.postgres")

	if config.Migrate {
		version, err := MigratePostgres(config.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("database migrations applied", "version", version)
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, NewStorageError("postgres", "open", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, NewStorageError("postgres", "ping", err)
	}

	logger.Info("PostgreSQL run store initialized", "max_open_conns", config.MaxOpenConns)

	return &PostgresStore{
		sqlStore: sqlStore{
			db:          db,
			backend:     "postgres",
			logger:      logger,
			placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		},
	}, nil
}

// MigratePostgres applies the embedded migrations to the database at dsn
// and returns the resulting schema version. It uses its own connection,
// which is closed before returning.
func MigratePostgres(dsn string) (uint, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return 0, NewStorageError("postgres", "migrate", err)
	}

	src, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		db.Close()
		return 0, NewStorageError("postgres", "migrate", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return 0, NewStorageError("postgres", "migrate", err)
	}

	// Closing m closes driver and with it db.
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		driver.Close()
		return 0, NewStorageError("postgres", "migrate", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, NewStorageError("postgres", "migrate", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, NewStorageError("postgres", "migrate", err)
	}
	if dirty {
		return version, NewStorageError("postgres", "migrate",
			fmt.Errorf("schema version %d is dirty", version))
	}
	return version, nil
}
