package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var actionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateRules(&cfg.Rules)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if !actionName.MatchString(cfg.TerminalAction) {
		errs = append(errs, FieldError{
			Field:   "engine.terminal_action",
			Message: fmt.Sprintf("%q is not a valid action name", cfg.TerminalAction),
		})
	}
	if cfg.MaxRuleLength <= 0 {
		errs = append(errs, FieldError{Field: "engine.max_rule_length", Message: "must be positive"})
	}
	if cfg.MaxDepth <= 0 {
		errs = append(errs, FieldError{Field: "engine.max_depth", Message: "must be positive"})
	}
	if cfg.CacheSize < 0 {
		errs = append(errs, FieldError{Field: "engine.cache_size", Message: "must not be negative"})
	}
	if cfg.RuleTimeout < 0 {
		errs = append(errs, FieldError{Field: "engine.rule_timeout", Message: "must not be negative"})
	}
	for i, name := range cfg.Actions {
		if !actionName.MatchString(name) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("engine.actions[%d]", i),
				Message: fmt.Sprintf("%q is not a valid action name", name),
			})
		}
	}

	return errs
}

func validateRules(cfg *RulesConfig) []FieldError {
	var errs []FieldError

	if cfg.Path == "" {
		errs = append(errs, FieldError{Field: "rules.path", Message: "field is required"})
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{Field: "rules.debounce", Message: "must not be negative"})
	}
	if cfg.MaxFileSize <= 0 {
		errs = append(errs, FieldError{Field: "rules.max_file_size", Message: "must be positive"})
	}
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "rules.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	if cfg.Git.Repository != "" {
		errs = append(errs, validateGit(&cfg.Git)...)
	}

	return errs
}

func validateGit(cfg *GitConfig) []FieldError {
	var errs []FieldError

	if cfg.Branch == "" {
		errs = append(errs, FieldError{Field: "rules.git.branch", Message: "field is required"})
	}
	if cfg.Depth < 0 {
		errs = append(errs, FieldError{Field: "rules.git.depth", Message: "must not be negative"})
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, FieldError{Field: "rules.git.poll_interval", Message: "must be positive"})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "rules.git.timeout", Message: "must be positive"})
	}

	switch cfg.Auth.Type {
	case "none", "":
	case "token":
		if cfg.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.token", Message: "field is required for token auth"})
		}
	case "ssh":
		if cfg.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.ssh_key_path", Message: "field is required for ssh auth"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "rules.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q (must be none, token or ssh)", cfg.Auth.Type),
		})
	}

	return errs
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "store.sqlite.path", Message: "field is required for sqlite backend"})
		}
		switch strings.ToUpper(cfg.SQLite.JournalMode) {
		case "WAL", "DELETE", "TRUNCATE", "MEMORY":
		default:
			errs = append(errs, FieldError{
				Field:   "store.sqlite.journal_mode",
				Message: fmt.Sprintf("invalid journal mode %q (must be WAL, DELETE, TRUNCATE or MEMORY)", cfg.SQLite.JournalMode),
			})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{Field: "store.sqlite.busy_timeout", Message: "must not be negative"})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{Field: "store.postgres.dsn", Message: "field is required for postgres backend"})
		}
		if cfg.Postgres.MaxOpenConns < 0 {
			errs = append(errs, FieldError{Field: "store.postgres.max_open_conns", Message: "must not be negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory, sqlite or postgres)", cfg.Backend),
		})
	}

	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{Field: "store.retention_days", Message: "must not be negative"})
	}
	if cfg.MaxRecords < 0 {
		errs = append(errs, FieldError{Field: "store.max_records", Message: "must not be negative"})
	}
	if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "store.prune_schedule",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid address %q: %v", cfg.ListenAddress, err),
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "must not be negative"})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "must be positive"})
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "must be positive"})
	}
	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{Field: "server.cors.max_age", Message: "must not be negative"})
	}

	if cfg.Auth.Enabled {
		if len(cfg.Auth.Keys) == 0 {
			errs = append(errs, FieldError{Field: "server.auth.keys", Message: "at least one key is required when auth is enabled"})
		}
		seen := make(map[string]bool, len(cfg.Auth.Keys))
		for i, k := range cfg.Auth.Keys {
			field := fmt.Sprintf("server.auth.keys[%d].key", i)
			switch {
			case k.Key == "":
				errs = append(errs, FieldError{Field: field, Message: "field is required"})
			case seen[k.Key]:
				errs = append(errs, FieldError{Field: field, Message: "duplicate key"})
			}
			seen[k.Key] = true
		}
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.cert_file", Message: "field is required when TLS is enabled"})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.key_file", Message: "field is required when TLS is enabled"})
		}
	}
	switch cfg.TLS.MinVersion {
	case "1.2", "1.3":
	default:
		errs = append(errs, FieldError{
			Field:   "server.tls.min_version",
			Message: fmt.Sprintf("invalid TLS version %q (must be 1.2 or 1.3)", cfg.TLS.MinVersion),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn or error)", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json, text or console)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
		}
		if !validBuckets(cfg.Metrics.RuleDurationBuckets) {
			errs = append(errs, FieldError{Field: "telemetry.metrics.rule_duration_buckets", Message: "must be positive and increasing"})
		}
		if !validBuckets(cfg.Metrics.BatchDurationBuckets) {
			errs = append(errs, FieldError{Field: "telemetry.metrics.batch_duration_buckets", Message: "must be positive and increasing"})
		}
	}

	switch cfg.Tracing.Exporter {
	case "otlp", "zipkin":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.exporter",
			Message: fmt.Sprintf("invalid exporter %q (must be otlp or zipkin)", cfg.Tracing.Exporter),
		})
	}

	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q (must be always, never or ratio)", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0.0 and 1.0"})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "field is required when tracing is enabled"})
	}

	return errs
}

func validBuckets(buckets []float64) bool {
	for i, b := range buckets {
		if b <= 0 || (i > 0 && b <= buckets[i-1]) {
			return false
		}
	}
	return true
}
