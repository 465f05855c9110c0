package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default configuration values.
const (
	DefaultTerminalAction = "Exit"
	DefaultMaxRuleLength  = 64 * 1024
	DefaultMaxDepth       = 32
	DefaultCacheSize      = 1024

	DefaultRulesPath        = "./rules"
	DefaultRulesDebounce    = 100 * time.Millisecond
	DefaultRulesMaxFileSize = 10 * 1024 * 1024

	DefaultGitBranch       = "main"
	DefaultGitDepth        = 1
	DefaultGitPollInterval = 30 * time.Second
	DefaultGitTimeout      = 30 * time.Second

	DefaultStoreBackend      = "memory"
	DefaultSQLitePath        = "./rulebook.db"
	DefaultSQLiteJournalMode = "WAL"
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultMaxOpenConns      = 10
	DefaultRetentionDays     = 30
	DefaultPruneSchedule     = "0 3 * * *"
	DefaultMemoryMaxRecords  = 10000

	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = 1024 * 1024
	DefaultCORSMaxAge      = 3600
	DefaultTLSMinVersion   = "1.2"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "rulebook"

	DefaultTracingExporter    = "otlp"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingTimeout     = 10 * time.Second
	DefaultServiceName        = "rulebook"
)

var (
	// DefaultRuleDurationBuckets covers 10µs to 100ms.
	DefaultRuleDurationBuckets = []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1}

	// DefaultBatchDurationBuckets covers 1ms to 10s.
	DefaultBatchDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}
)

// Default returns a configuration with every default applied, including
// the defaults that ApplyDefaults cannot tell apart from an explicit false
// or zero. Files are decoded on top of it.
func Default() *Config {
	cfg := &Config{}
	cfg.Engine.CacheSize = DefaultCacheSize
	cfg.Store.RetentionDays = DefaultRetentionDays
	cfg.Store.Postgres.Migrate = true
	cfg.Telemetry.Metrics.Enabled = true
	cfg.Telemetry.Tracing.Insecure = true
	cfg.Rules.Git.Depth = DefaultGitDepth
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Engine defaults
	if cfg.Engine.TerminalAction == "" {
		cfg.Engine.TerminalAction = DefaultTerminalAction
	}
	if cfg.Engine.MaxRuleLength == 0 {
		cfg.Engine.MaxRuleLength = DefaultMaxRuleLength
	}
	if cfg.Engine.MaxDepth == 0 {
		cfg.Engine.MaxDepth = DefaultMaxDepth
	}

	// Rules defaults
	if cfg.Rules.Path == "" {
		cfg.Rules.Path = DefaultRulesPath
	}
	if cfg.Rules.Debounce == 0 {
		cfg.Rules.Debounce = DefaultRulesDebounce
	}
	if cfg.Rules.MaxFileSize == 0 {
		cfg.Rules.MaxFileSize = DefaultRulesMaxFileSize
	}
	if cfg.Rules.Git.Branch == "" {
		cfg.Rules.Git.Branch = DefaultGitBranch
	}
	if cfg.Rules.Git.LocalPath == "" {
		cfg.Rules.Git.LocalPath = filepath.Join(os.TempDir(), "rulebook-rules")
	}
	if cfg.Rules.Git.PollInterval == 0 {
		cfg.Rules.Git.PollInterval = DefaultGitPollInterval
	}
	if cfg.Rules.Git.Timeout == 0 {
		cfg.Rules.Git.Timeout = DefaultGitTimeout
	}
	if cfg.Rules.Git.Auth.Type == "" {
		cfg.Rules.Git.Auth.Type = "none"
	}

	// Store defaults
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Store.SQLite.JournalMode == "" {
		cfg.Store.SQLite.JournalMode = DefaultSQLiteJournalMode
	}
	if cfg.Store.SQLite.BusyTimeout == 0 {
		cfg.Store.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Store.SQLite.MaxOpenConns == 0 {
		cfg.Store.SQLite.MaxOpenConns = DefaultMaxOpenConns
	}
	if cfg.Store.Postgres.MaxOpenConns == 0 {
		cfg.Store.Postgres.MaxOpenConns = DefaultMaxOpenConns
	}
	if cfg.Store.PruneSchedule == "" {
		cfg.Store.PruneSchedule = DefaultPruneSchedule
	}
	if cfg.Store.MaxRecords == 0 {
		cfg.Store.MaxRecords = DefaultMemoryMaxRecords
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(cfg.Server.CORS.AllowedOrigins) == 0 {
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = []string{"Content-Type", "Authorization", "X-API-Key", "X-Request-ID", "traceparent"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.RuleDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RuleDurationBuckets = append([]float64(nil), DefaultRuleDurationBuckets...)
	}
	if len(cfg.Telemetry.Metrics.BatchDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.BatchDurationBuckets = append([]float64(nil), DefaultBatchDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Exporter == "" {
		cfg.Telemetry.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 && cfg.Telemetry.Tracing.Sampler == DefaultTracingSampler {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.IgnorePaths == nil {
		cfg.Telemetry.Tracing.IgnorePaths = []string{"/healthz", "/readyz", "/version", cfg.Telemetry.Metrics.Path}
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultServiceName
	}
}
