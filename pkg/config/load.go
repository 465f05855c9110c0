package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "RULEBOOK_"

// LoadConfig loads configuration from a YAML file at the specified path.
// Values absent from the file keep their defaults. The configuration is
// validated but not modified by environment variables; use
// LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// parse decodes YAML on top of the defaults. Unknown keys are rejected so
// that typos surface instead of silently keeping a default.
func parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention RULEBOOK_SECTION_FIELD (e.g., RULEBOOK_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from the defaults.
//
// The loading sequence is:
// 1. Start from default values
// 2. Overlay the YAML file
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		cfg, err = parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Values that fail to parse are ignored and the previous value is kept.
func applyEnvOverrides(cfg *Config) {
	// Engine overrides
	envString("ENGINE_TERMINAL_ACTION", &cfg.Engine.TerminalAction)
	envInt("ENGINE_MAX_RULE_LENGTH", &cfg.Engine.MaxRuleLength)
	envInt("ENGINE_MAX_DEPTH", &cfg.Engine.MaxDepth)
	envInt("ENGINE_CACHE_SIZE", &cfg.Engine.CacheSize)
	envBool("ENGINE_TRACE", &cfg.Engine.Trace)
	envBool("ENGINE_STRICT_DISPATCH", &cfg.Engine.StrictDispatch)
	envDuration("ENGINE_RULE_TIMEOUT", &cfg.Engine.RuleTimeout)

	// Rules overrides
	envString("RULES_PATH", &cfg.Rules.Path)
	envBool("RULES_WATCH", &cfg.Rules.Watch)
	envDuration("RULES_DEBOUNCE", &cfg.Rules.Debounce)
	envInt64("RULES_MAX_FILE_SIZE", &cfg.Rules.MaxFileSize)
	envString("RULES_SCHEDULE", &cfg.Rules.Schedule)
	envString("RULES_GIT_REPOSITORY", &cfg.Rules.Git.Repository)
	envString("RULES_GIT_BRANCH", &cfg.Rules.Git.Branch)
	envString("RULES_GIT_PATH", &cfg.Rules.Git.Path)
	envString("RULES_GIT_LOCAL_PATH", &cfg.Rules.Git.LocalPath)
	envString("RULES_GIT_AUTH_TYPE", &cfg.Rules.Git.Auth.Type)
	envString("RULES_GIT_AUTH_TOKEN", &cfg.Rules.Git.Auth.Token)
	envString("RULES_GIT_AUTH_SSH_KEY_PATH", &cfg.Rules.Git.Auth.SSHKeyPath)

	// Store overrides
	envString("STORE_BACKEND", &cfg.Store.Backend)
	envString("STORE_SQLITE_PATH", &cfg.Store.SQLite.Path)
	envString("STORE_SQLITE_JOURNAL_MODE", &cfg.Store.SQLite.JournalMode)
	envDuration("STORE_SQLITE_BUSY_TIMEOUT", &cfg.Store.SQLite.BusyTimeout)
	envString("STORE_POSTGRES_DSN", &cfg.Store.Postgres.DSN)
	envBool("STORE_POSTGRES_MIGRATE", &cfg.Store.Postgres.Migrate)
	envInt("STORE_RETENTION_DAYS", &cfg.Store.RetentionDays)
	envString("STORE_PRUNE_SCHEDULE", &cfg.Store.PruneSchedule)

	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envInt64("SERVER_MAX_BODY_BYTES", &cfg.Server.MaxBodyBytes)
	envBool("SERVER_CORS_ENABLED", &cfg.Server.CORS.Enabled)
	envBool("SERVER_AUTH_ENABLED", &cfg.Server.Auth.Enabled)
	envBool("SERVER_TLS_ENABLED", &cfg.Server.TLS.Enabled)
	envString("SERVER_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	envString("SERVER_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)
	envString("SERVER_TLS_MIN_VERSION", &cfg.Server.TLS.MinVersion)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envString("TELEMETRY_METRICS_NAMESPACE", &cfg.Telemetry.Metrics.Namespace)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_EXPORTER", &cfg.Telemetry.Tracing.Exporter)
	envString("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envBool("TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
	envString("TELEMETRY_TRACING_SERVICE_NAME", &cfg.Telemetry.Tracing.ServiceName)
}

func lookupEnv(name string) (string, bool) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return "", false
	}
	val = strings.TrimSpace(val)
	return val, val != ""
}

func envString(name string, dst *string) {
	if val, ok := lookupEnv(name); ok {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val, ok := lookupEnv(name); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if val, ok := lookupEnv(name); ok {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envInt64(name string, dst *int64) {
	if val, ok := lookupEnv(name); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}

func envFloat(name string, dst *float64) {
	if val, ok := lookupEnv(name); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val, ok := lookupEnv(name); ok {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
