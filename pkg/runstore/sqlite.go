package runstore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteConfig contains configuration for the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path. Parent directories are created.
	Path string

	// JournalMode is applied to every connection.
	// Default: "WAL"
	JournalMode string

	// BusyTimeout is how long a connection waits on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "rulebook.db",
		JournalMode:  "WAL",
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 10,
	}
}

// SQLiteStore stores reports in a SQLite database using the pure Go
// modernc.org/sqlite driver.
type SQLiteStore struct {
	sqlStore
	config *SQLiteConfig
}

// NewSQLiteStore opens (creating if needed) the database at config.Path and
// ensures the schema is current.
func NewSQLiteStore(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "runstore.sqlite")

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, NewStorageError("sqlite", "open", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(config))
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}

	s := &SQLiteStore{
		sqlStore: sqlStore{
			db:          db,
			backend:     "sqlite",
			logger:      logger,
			placeholder: func(int) string { return "?" },
		},
		config: config,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite run store initialized",
		"path", config.Path,
		"journal_mode", config.JournalMode,
		"max_open_conns", config.MaxOpenConns,
	)
	return s, nil
}

// sqliteDSN builds a connection string whose pragmas the driver applies to
// every new connection in the pool.
func sqliteDSN(config *SQLiteConfig) string {
	params := url.Values{}
	if config.BusyTimeout > 0 {
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", config.BusyTimeout.Milliseconds()))
	}
	if config.JournalMode != "" {
		params.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(config.JournalMode)))
	}
	if len(params) == 0 {
		return "file:" + config.Path
	}
	return "file:" + config.Path + "?" + params.Encode()
}

// initialize creates the schema and verifies its version.
func (s *SQLiteStore) initialize() error {
	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(sqliteInsertSchemaVersion, SQLiteSchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(sqliteGetSchemaVersion).Scan(&version); err != nil {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SQLiteSchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SQLiteSchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}
