// Package config provides configuration management for Meridian.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with accumulated validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("meridian.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("meridian.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention MERIDIAN_SECTION_FIELD.
// For example:
//
//   - MERIDIAN_SERVER_LISTEN overrides server.listen
//   - MERIDIAN_PROVIDERS_GROQ_CREDENTIAL_REF overrides providers.groq.credential_ref
//   - MERIDIAN_LOGGING_LEVEL overrides logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides
// earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Credential Indirection
//
// Credential references never carry secrets inline in checked-in files:
// "env:GROQ_API_KEY" resolves through the environment and
// "file:/run/secrets/groq" through the filesystem. A literal value is used
// as-is, which is only sensible for local development.
//
// # Configuration Sources
//
// Besides a local file (optionally hot-reloaded via fsnotify), the
// config_source section supports a git repository polled on an interval;
// when HEAD moves, the file is re-read and the provider catalog is rebuilt
// without restarting the server.
package config
