// Package config provides configuration management for rulebook.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("rulebook.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("rulebook.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("") // defaults + env only
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention RULEBOOK_SECTION_FIELD:
//
//   - RULEBOOK_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - RULEBOOK_STORE_BACKEND overrides store.backend
//   - RULEBOOK_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// Validation errors include field paths:
//
//	configuration validation failed with 2 errors:
//	  - store.backend: invalid backend "redis" (must be memory, sqlite or postgres)
//	  - rules.schedule: invalid cron expression: ...
//
// # Example Configuration
//
//	engine:
//	  terminal_action: Exit
//	  strict_dispatch: true
//
//	rules:
//	  path: ./rules
//	  watch: true
//
//	store:
//	  backend: sqlite
//	  sqlite:
//	    path: ./rulebook.db
//	  retention_days: 14
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: console
package config
