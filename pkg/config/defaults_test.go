package config

import (
	"reflect"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"engine.terminal_action", cfg.Engine.TerminalAction, DefaultTerminalAction},
		{"engine.max_rule_length", cfg.Engine.MaxRuleLength, DefaultMaxRuleLength},
		{"engine.max_depth", cfg.Engine.MaxDepth, DefaultMaxDepth},
		{"rules.path", cfg.Rules.Path, DefaultRulesPath},
		{"rules.debounce", cfg.Rules.Debounce, DefaultRulesDebounce},
		{"rules.git.branch", cfg.Rules.Git.Branch, DefaultGitBranch},
		{"rules.git.poll_interval", cfg.Rules.Git.PollInterval, DefaultGitPollInterval},
		{"rules.git.auth.type", cfg.Rules.Git.Auth.Type, "none"},
		{"store.backend", cfg.Store.Backend, DefaultStoreBackend},
		{"store.sqlite.journal_mode", cfg.Store.SQLite.JournalMode, DefaultSQLiteJournalMode},
		{"store.prune_schedule", cfg.Store.PruneSchedule, DefaultPruneSchedule},
		{"server.listen_address", cfg.Server.ListenAddress, DefaultListenAddress},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeout, DefaultShutdownTimeout},
		{"telemetry.logging.level", cfg.Telemetry.Logging.Level, DefaultLogLevel},
		{"telemetry.metrics.namespace", cfg.Telemetry.Metrics.Namespace, DefaultMetricsNamespace},
		{"telemetry.tracing.exporter", cfg.Telemetry.Tracing.Exporter, DefaultTracingExporter},
		{"telemetry.tracing.sample_ratio", cfg.Telemetry.Tracing.SampleRatio, DefaultTracingSampleRatio},
		{"telemetry.tracing.service_name", cfg.Telemetry.Tracing.ServiceName, DefaultServiceName},
		{"telemetry.tracing.ignore_paths", cfg.Telemetry.Tracing.IgnorePaths, []string{"/healthz", "/readyz", "/version", DefaultMetricsPath}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Engine.TerminalAction = "Stop"
	cfg.Server.ListenAddress = "0.0.0.0:1"
	cfg.Telemetry.Tracing.Sampler = "always"

	ApplyDefaults(cfg)

	if cfg.Engine.TerminalAction != "Stop" {
		t.Errorf("terminal action overwritten: %q", cfg.Engine.TerminalAction)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:1" {
		t.Errorf("listen address overwritten: %q", cfg.Server.ListenAddress)
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0 {
		t.Errorf("sample ratio should stay zero for the always sampler, got %v", cfg.Telemetry.Tracing.SampleRatio)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg1 := &Config{}
	ApplyDefaults(cfg1)

	cfg2 := &Config{}
	ApplyDefaults(cfg2)
	ApplyDefaults(cfg2)

	if !reflect.DeepEqual(cfg1, cfg2) {
		t.Error("ApplyDefaults is not idempotent")
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Default() is invalid: %v", err)
	}
	if cfg.Engine.CacheSize != DefaultCacheSize {
		t.Errorf("cache size = %d, want %d", cfg.Engine.CacheSize, DefaultCacheSize)
	}
	if cfg.Store.RetentionDays != DefaultRetentionDays {
		t.Errorf("retention = %d, want %d", cfg.Store.RetentionDays, DefaultRetentionDays)
	}
	if !cfg.Telemetry.Metrics.Enabled || !cfg.Telemetry.Tracing.Insecure {
		t.Error("expected metrics enabled and insecure tracing by default")
	}
}

func TestDefault_BucketsNotShared(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.Metrics.RuleDurationBuckets[0] = 42

	if DefaultRuleDurationBuckets[0] == 42 {
		t.Error("Default() shares the package bucket slice")
	}
}
