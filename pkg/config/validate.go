package config

import (
	"fmt"
	"strings"
)

// ValidProviderKinds is the closed set of driver kinds.
var ValidProviderKinds = []string{
	"openai-compatible",
	"cohere",
	"cloudflare",
	"pollinations",
	"aihorde",
	"custom-auth",
}

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "server.listen").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. All field errors are collected and reported together.
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

// Validate validates the entire configuration and returns a ValidationError
// if any rules fail. It returns nil if the configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateRouting(&cfg.Routing)...)
	errs = append(errs, validateResilience(&cfg.Resilience)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateEstimator(&cfg.Estimator)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateCatalog(cfg)...)
	errs = append(errs, validateSource(&cfg.Source)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.Listen == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.cert_file",
				Message: "cert file is required when TLS is enabled",
			})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.key_file",
				Message: "key file is required when TLS is enabled",
			})
		}
	}
	if cfg.TLS.MinVersion != "" && cfg.TLS.MinVersion != "1.2" && cfg.TLS.MinVersion != "1.3" {
		errs = append(errs, FieldError{
			Field:   "server.tls.min_version",
			Message: fmt.Sprintf("invalid TLS version %q (must be \"1.2\" or \"1.3\")", cfg.TLS.MinVersion),
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level %q (must be debug, info, warn, or error)", cfg.Level),
		})
	}

	switch cfg.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format %q (must be json or text)", cfg.Format),
		})
	}

	return errs
}

func validateRouting(cfg *RoutingConfig) []FieldError {
	var errs []FieldError

	if cfg.Weights.Cost < 0 {
		errs = append(errs, FieldError{
			Field:   "routing.weights.cost",
			Message: "weight must be non-negative",
		})
	}
	if cfg.Weights.Latency < 0 {
		errs = append(errs, FieldError{
			Field:   "routing.weights.latency",
			Message: "weight must be non-negative",
		})
	}
	if cfg.Weights.Reliability < 0 {
		errs = append(errs, FieldError{
			Field:   "routing.weights.reliability",
			Message: "weight must be non-negative",
		})
	}
	if cfg.Weights.Cost == 0 && cfg.Weights.Latency == 0 && cfg.Weights.Reliability == 0 {
		errs = append(errs, FieldError{
			Field:   "routing.weights",
			Message: "at least one weight must be positive",
		})
	}
	if cfg.StatsWindowSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "routing.stats_window_size",
			Message: "stats window size must be positive",
		})
	}

	return errs
}

func validateResilience(cfg *ResilienceConfig) []FieldError {
	var errs []FieldError

	if cfg.AttemptTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "resilience.attempt_timeout",
			Message: "attempt timeout must be positive",
		})
	}
	if cfg.TTFBTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "resilience.ttfb_timeout",
			Message: "TTFB timeout must be positive",
		})
	}
	if cfg.TTFBTimeout > cfg.AttemptTimeout {
		errs = append(errs, FieldError{
			Field:   "resilience.ttfb_timeout",
			Message: "TTFB timeout must not exceed attempt timeout",
		})
	}
	if cfg.RetryBackoff < 0 {
		errs = append(errs, FieldError{
			Field:   "resilience.retry_backoff",
			Message: "retry backoff must be non-negative",
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
			errs = append(errs, FieldError{
				Field:   "store.sqlite.path",
				Message: "path is required for the sqlite backend",
			})
		}
		switch cfg.SQLite.Driver {
		case "auto", "cgo", "pure":
		default:
			errs = append(errs, FieldError{
				Field:   "store.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q (must be auto, cgo, or pure)", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.max_open_conns",
				Message: "max open connections must be at least 1",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory or sqlite)", cfg.Backend),
		})
	}

	return errs
}

func validateEstimator(cfg *EstimatorConfig) []FieldError {
	var errs []FieldError

	if cfg.CharsPerToken <= 0 {
		errs = append(errs, FieldError{
			Field:   "estimator.chars_per_token",
			Message: "chars per token must be positive",
		})
	}
	for model, ratio := range cfg.Models {
		if ratio <= 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("estimator.models.%s", model),
				Message: "chars per token must be positive",
			})
		}
	}

	return errs
}

func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	for id, provider := range providers {
		if provider.Kind == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("providers.%s.kind", id),
				Message: "kind is required",
			})
			continue
		}

		valid := false
		for _, kind := range ValidProviderKinds {
			if provider.Kind == kind {
				valid = true
				break
			}
		}
		if !valid {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("providers.%s.kind", id),
				Message: fmt.Sprintf("unknown kind %q (must be one of %s)", provider.Kind, strings.Join(ValidProviderKinds, ", ")),
			})
		}

		if provider.Tier < 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("providers.%s.tier", id),
				Message: "tier must be non-negative",
			})
		}
		if provider.RPMLimit < 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("providers.%s.rpm_limit", id),
				Message: "rpm limit must be non-negative (0 = unlimited)",
			})
		}
		if provider.TPMLimit < 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("providers.%s.tpm_limit", id),
				Message: "tpm limit must be non-negative (0 = unlimited)",
			})
		}
	}

	return errs
}

// validateCatalog checks the referential integrity of canonical models and
// aliases against the provider set.
func validateCatalog(cfg *Config) []FieldError {
	var errs []FieldError

	modelIDs := make(map[string]bool, len(cfg.CanonicalModels))
	for i, model := range cfg.CanonicalModels {
		if model.ID == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("canonical_models[%d].id", i),
				Message: "id is required",
			})
			continue
		}
		if modelIDs[model.ID] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("canonical_models[%d].id", i),
				Message: fmt.Sprintf("duplicate canonical model id %q", model.ID),
			})
		}
		modelIDs[model.ID] = true

		if model.ProviderID == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("canonical_models[%d].provider_id", i),
				Message: "provider_id is required",
			})
		} else if _, ok := cfg.Providers[model.ProviderID]; !ok {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("canonical_models[%d].provider_id", i),
				Message: fmt.Sprintf("unknown provider %q", model.ProviderID),
			})
		}

		if model.ModelPath == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("canonical_models[%d].model_path", i),
				Message: "model_path is required",
			})
		}
	}

	for name, template := range cfg.Aliases {
		if len(template) == 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("aliases.%s", name),
				Message: "alias template must not be empty",
			})
			continue
		}
		if modelIDs[name] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("aliases.%s", name),
				Message: "alias name collides with a canonical model id",
			})
		}
		for _, id := range template {
			if !modelIDs[id] {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("aliases.%s", name),
					Message: fmt.Sprintf("unknown canonical model %q", id),
				})
			}
		}
	}

	return errs
}

func validateSource(cfg *SourceConfig) []FieldError {
	var errs []FieldError

	switch cfg.Type {
	case "file":
	case "git":
		if cfg.Git.Repository == "" {
			errs = append(errs, FieldError{
				Field:   "config_source.git.repository",
				Message: "repository is required for the git source",
			})
		}
		if cfg.Git.PollInterval <= 0 {
			errs = append(errs, FieldError{
				Field:   "config_source.git.poll_interval",
				Message: "poll interval must be positive",
			})
		}
		switch cfg.Git.Auth.Type {
		case "none":
		case "token":
			if cfg.Git.Auth.Token == "" {
				errs = append(errs, FieldError{
					Field:   "config_source.git.auth.token",
					Message: "token is required for token auth",
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   "config_source.git.auth.type",
				Message: fmt.Sprintf("invalid auth type %q (must be none or token)", cfg.Git.Auth.Type),
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "config_source.type",
			Message: fmt.Sprintf("invalid source type %q (must be file or git)", cfg.Type),
		})
	}

	return errs
}
