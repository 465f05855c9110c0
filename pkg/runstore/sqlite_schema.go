package runstore

// SQLiteSchemaVersion is the current SQLite schema version.
const SQLiteSchemaVersion = 1

// sqliteSchema creates the run history schema.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    set_name TEXT NOT NULL,
    outcome TEXT NOT NULL,

    -- Unix nanoseconds, so range filters compare integers
    started_at INTEGER NOT NULL,
    duration_ns INTEGER NOT NULL,

    attempted INTEGER NOT NULL,
    total INTEGER NOT NULL,
    excluded_count INTEGER NOT NULL,
    error TEXT,

    -- Encoded ruleset.Report
    report TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_set_name ON runs(set_name, started_at);
CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);
`

const sqliteInsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

const sqliteGetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
