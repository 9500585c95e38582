package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses configuration from raw YAML bytes, applies defaults,
// and validates. It is the entry point for non-file sources (git).
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention MERIDIAN_SECTION_FIELD (e.g., MERIDIAN_SERVER_LISTEN) and
// always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format MERIDIAN_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("MERIDIAN_SERVER_LISTEN"); val != "" {
		cfg.Server.Listen = val
	}
	if val := os.Getenv("MERIDIAN_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("MERIDIAN_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("MERIDIAN_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}
	if val := os.Getenv("MERIDIAN_SERVER_TLS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Server.TLS.Enabled = b
		}
	}
	if val := os.Getenv("MERIDIAN_SERVER_TLS_CERT_FILE"); val != "" {
		cfg.Server.TLS.CertFile = val
	}
	if val := os.Getenv("MERIDIAN_SERVER_TLS_KEY_FILE"); val != "" {
		cfg.Server.TLS.KeyFile = val
	}

	// Logging overrides
	if val := os.Getenv("MERIDIAN_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("MERIDIAN_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}

	// Telemetry overrides
	if val := os.Getenv("MERIDIAN_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
	if val := os.Getenv("MERIDIAN_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
	if val := os.Getenv("MERIDIAN_TELEMETRY_METRICS_NAMESPACE"); val != "" {
		cfg.Telemetry.Metrics.Namespace = val
	}

	// Routing overrides
	if val := os.Getenv("MERIDIAN_ROUTING_WEIGHTS_COST"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Routing.Weights.Cost = f
		}
	}
	if val := os.Getenv("MERIDIAN_ROUTING_WEIGHTS_LATENCY"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Routing.Weights.Latency = f
		}
	}
	if val := os.Getenv("MERIDIAN_ROUTING_WEIGHTS_RELIABILITY"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Routing.Weights.Reliability = f
		}
	}
	if val := os.Getenv("MERIDIAN_ROUTING_EMERGENCY_TIER_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Routing.EmergencyTier.Enabled = &b
		}
	}

	// Resilience overrides
	if val := os.Getenv("MERIDIAN_RESILIENCE_ATTEMPT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Resilience.AttemptTimeout = d
		}
	}
	if val := os.Getenv("MERIDIAN_RESILIENCE_TTFB_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Resilience.TTFBTimeout = d
		}
	}
	if val := os.Getenv("MERIDIAN_RESILIENCE_RETRY_BACKOFF"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Resilience.RetryBackoff = d
		}
	}

	// Store overrides
	if val := os.Getenv("MERIDIAN_STORE_BACKEND"); val != "" {
		cfg.Store.Backend = val
	}
	if val := os.Getenv("MERIDIAN_STORE_SQLITE_PATH"); val != "" {
		cfg.Store.SQLite.Path = val
	}
	if val := os.Getenv("MERIDIAN_STORE_SQLITE_DRIVER"); val != "" {
		cfg.Store.SQLite.Driver = val
	}

	// Provider overrides, for every provider declared in the file
	for id := range cfg.Providers {
		applyProviderEnvOverrides(cfg, id)
	}
}

// applyProviderEnvOverrides applies environment variable overrides for one
// provider. Variables follow the format MERIDIAN_PROVIDERS_<ID>_<FIELD>
// where ID is the uppercase provider id with dashes mapped to underscores.
func applyProviderEnvOverrides(cfg *Config, providerID string) {
	provider := cfg.Providers[providerID]

	envID := strings.ToUpper(strings.ReplaceAll(providerID, "-", "_"))
	prefix := fmt.Sprintf("MERIDIAN_PROVIDERS_%s_", envID)

	if val := os.Getenv(prefix + "ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			provider.Enabled = &b
		}
	}
	if val := os.Getenv(prefix + "ENDPOINT"); val != "" {
		provider.Endpoint = val
	}
	if val := os.Getenv(prefix + "CREDENTIAL_REF"); val != "" {
		provider.CredentialRef = val
	}
	if val := os.Getenv(prefix + "RPM_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			provider.RPMLimit = i
		}
	}
	if val := os.Getenv(prefix + "TPM_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			provider.TPMLimit = i
		}
	}
	if val := os.Getenv(prefix + "TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			provider.Timeout = d
		}
	}

	cfg.Providers[providerID] = provider
}
