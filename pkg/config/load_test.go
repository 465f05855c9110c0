package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rulebook.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
engine:
  terminal_action: Stop
  strict_dispatch: true
  rule_timeout: 50ms

rules:
  path: ./sets
  watch: true
  schedule: "*/5 * * * *"

store:
  backend: sqlite
  sqlite:
    path: ./test.db
  retention_days: 7

server:
  listen_address: "0.0.0.0:9090"
  read_timeout: 60s

telemetry:
  logging:
    level: debug
    format: text
  metrics:
    enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Engine.TerminalAction != "Stop" {
		t.Errorf("expected terminal action %q, got %q", "Stop", cfg.Engine.TerminalAction)
	}
	if !cfg.Engine.StrictDispatch {
		t.Error("expected strict dispatch")
	}
	if cfg.Engine.RuleTimeout != 50*time.Millisecond {
		t.Errorf("expected rule timeout 50ms, got %v", cfg.Engine.RuleTimeout)
	}
	if cfg.Rules.Path != "./sets" || !cfg.Rules.Watch {
		t.Errorf("unexpected rules config: %+v", cfg.Rules)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.SQLite.Path != "./test.db" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Store.RetentionDays != 7 {
		t.Errorf("expected retention 7, got %d", cfg.Store.RetentionDays)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9090", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 60*time.Second {
		t.Errorf("expected read timeout %v, got %v", 60*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics disabled by file")
	}

	// Values absent from the file keep their defaults.
	if cfg.Engine.CacheSize != DefaultCacheSize {
		t.Errorf("expected default cache size, got %d", cfg.Engine.CacheSize)
	}
	if cfg.Store.SQLite.JournalMode != DefaultSQLiteJournalMode {
		t.Errorf("expected default journal mode, got %q", cfg.Store.SQLite.JournalMode)
	}
	if !cfg.Store.Postgres.Migrate {
		t.Error("expected postgres migrate default true")
	}
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("failed to load empty config: %v", err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("expected default listen address, got %q", cfg.Server.ListenAddress)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics enabled by default")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "engine:\n  max_depth: [unclosed\n"))
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestLoadConfig_UnknownField(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "engine:\n  terminal_actoin: Stop\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "store:\n  backend: redis\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors) != 1 || verr.Errors[0].Field != "store.backend" {
		t.Errorf("unexpected field errors: %v", verr.Errors)
	}
}

func TestLoadConfigWithEnvOverrides_BasicOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  listen_address: \"127.0.0.1:8080\"\n")

	t.Setenv("RULEBOOK_SERVER_LISTEN_ADDRESS", "0.0.0.0:9999")
	t.Setenv("RULEBOOK_ENGINE_TERMINAL_ACTION", "Halt")
	t.Setenv("RULEBOOK_STORE_BACKEND", "postgres")
	t.Setenv("RULEBOOK_STORE_POSTGRES_DSN", "postgres://localhost/rulebook")
	t.Setenv("RULEBOOK_TELEMETRY_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9999" {
		t.Errorf("expected env override of listen address, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Engine.TerminalAction != "Halt" {
		t.Errorf("expected terminal action Halt, got %q", cfg.Engine.TerminalAction)
	}
	if cfg.Store.Backend != "postgres" || cfg.Store.Postgres.DSN != "postgres://localhost/rulebook" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %q", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("RULEBOOK_RULES_PATH", "/srv/rules")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Rules.Path != "/srv/rules" {
		t.Errorf("expected rules path from env, got %q", cfg.Rules.Path)
	}
	if cfg.Engine.TerminalAction != DefaultTerminalAction {
		t.Errorf("expected default terminal action, got %q", cfg.Engine.TerminalAction)
	}
}

func TestLoadConfigWithEnvOverrides_Parsing(t *testing.T) {
	t.Setenv("RULEBOOK_ENGINE_RULE_TIMEOUT", "250ms")
	t.Setenv("RULEBOOK_ENGINE_MAX_DEPTH", "8")
	t.Setenv("RULEBOOK_RULES_WATCH", "true")
	t.Setenv("RULEBOOK_SERVER_MAX_BODY_BYTES", "2048")
	t.Setenv("RULEBOOK_TELEMETRY_TRACING_SAMPLE_RATIO", "0.5")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Engine.RuleTimeout != 250*time.Millisecond {
		t.Errorf("expected rule timeout 250ms, got %v", cfg.Engine.RuleTimeout)
	}
	if cfg.Engine.MaxDepth != 8 {
		t.Errorf("expected max depth 8, got %d", cfg.Engine.MaxDepth)
	}
	if !cfg.Rules.Watch {
		t.Error("expected watch enabled")
	}
	if cfg.Server.MaxBodyBytes != 2048 {
		t.Errorf("expected max body 2048, got %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.5 {
		t.Errorf("expected sample ratio 0.5, got %v", cfg.Telemetry.Tracing.SampleRatio)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidEnvValues(t *testing.T) {
	t.Setenv("RULEBOOK_ENGINE_RULE_TIMEOUT", "soon")
	t.Setenv("RULEBOOK_ENGINE_MAX_DEPTH", "deep")
	t.Setenv("RULEBOOK_RULES_WATCH", "maybe")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Unparseable values are ignored.
	if cfg.Engine.RuleTimeout != 0 {
		t.Errorf("expected rule timeout unchanged, got %v", cfg.Engine.RuleTimeout)
	}
	if cfg.Engine.MaxDepth != DefaultMaxDepth {
		t.Errorf("expected default max depth, got %d", cfg.Engine.MaxDepth)
	}
	if cfg.Rules.Watch {
		t.Error("expected watch unchanged")
	}
}

func TestLoadConfigWithEnvOverrides_ValidationAfterOverride(t *testing.T) {
	t.Setenv("RULEBOOK_STORE_BACKEND", "sqlite")
	t.Setenv("RULEBOOK_STORE_SQLITE_JOURNAL_MODE", "sideways")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil {
		t.Fatal("expected validation error after override")
	}
	if !strings.Contains(err.Error(), "store.sqlite.journal_mode") {
		t.Errorf("expected journal mode error, got %v", err)
	}
}
