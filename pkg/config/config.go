package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the root configuration structure for Meridian.
// It contains all configuration sections for the HTTP server, the provider
// catalog, routing, resilience, persistence, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, TLS, and CORS.
	Server ServerConfig `yaml:"server"`

	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry contains observability configuration (metrics).
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Routing contains candidate scoring and tier configuration.
	Routing RoutingConfig `yaml:"routing"`

	// Resilience contains per-attempt timeout and retry configuration.
	Resilience ResilienceConfig `yaml:"resilience"`

	// Store contains the shared health/quota store configuration.
	Store StoreConfig `yaml:"store"`

	// Estimator contains token estimation configuration.
	Estimator EstimatorConfig `yaml:"estimator"`

	// Pricing contains model pricing by provider, used for the cost term
	// of candidate scores. Keys: provider id, then provider-native model path.
	Pricing map[string]map[string]ModelPricing `yaml:"pricing"`

	// Providers contains all upstream provider definitions.
	// Keys are provider ids (e.g., "groq", "cohere", "cloudflare").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// CanonicalModels lists every model deployment the gateway can route to.
	CanonicalModels []CanonicalModelConfig `yaml:"canonical_models"`

	// Aliases maps user-facing model names to ordered lists of canonical
	// model ids (the candidate template, best first).
	Aliases map[string][]string `yaml:"aliases"`

	// Source controls where configuration is loaded from and how changes
	// are picked up (local file watch or git polling).
	Source SourceConfig `yaml:"config_source"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// Listen is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	Listen string `yaml:"listen"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It bounds the whole response, so it is also the ceiling on
	// streaming response lifetime.
	// Default: 5m
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// TLS contains TLS configuration.
	TLS TLSConfig `yaml:"tls"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// TLSConfig contains TLS configuration for the server.
type TLSConfig struct {
	// Enabled controls whether TLS is enabled.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the TLS certificate file.
	// Required when Enabled is true.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the TLS private key file.
	// Required when Enabled is true.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum TLS version to accept.
	// Options: "1.2", "1.3"
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers.
	// Default: ["Authorization", "Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache duration in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the /metrics endpoint is served.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "meridian"
	Namespace string `yaml:"namespace"`

	// RequestDurationBuckets defines histogram buckets for request duration
	// in seconds.
	// Default: [0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// RoutingConfig contains candidate scoring and tier configuration.
type RoutingConfig struct {
	// Weights contains the scoring weights for candidate ordering.
	Weights WeightsConfig `yaml:"weights"`

	// EmergencyTier contains last-resort tier configuration.
	EmergencyTier EmergencyTierConfig `yaml:"emergency_tier"`

	// StatsWindowSize is the number of recent samples kept per provider for
	// latency and failure-rate estimation.
	// Default: 64
	StatsWindowSize int `yaml:"stats_window_size"`
}

// WeightsConfig contains the scoring weights used to order candidates
// within a tier. Lower weighted sum = tried earlier.
type WeightsConfig struct {
	// Cost is the weight of the normalized per-token cost term.
	// Default: 0.5
	Cost float64 `yaml:"cost"`

	// Latency is the weight of the normalized p50 latency term.
	// Default: 0.3
	Latency float64 `yaml:"latency"`

	// Reliability is the weight of the recent failure-rate term.
	// Default: 0.2
	Reliability float64 `yaml:"reliability"`
}

// EmergencyTierConfig contains configuration for the last-resort tier,
// which retries all providers ignoring health and quota state.
type EmergencyTierConfig struct {
	// Enabled controls whether the emergency tier is walked after the
	// paid tier is exhausted.
	// Default: true
	Enabled *bool `yaml:"enabled"`
}

// ResilienceConfig contains per-attempt timeout and retry configuration.
type ResilienceConfig struct {
	// AttemptTimeout bounds one complete non-streaming provider attempt.
	// Default: 30s
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	// TTFBTimeout bounds the wait for the first streamed byte.
	// Default: 10s
	TTFBTimeout time.Duration `yaml:"ttfb_timeout"`

	// RetryBackoff is the fixed delay before the single in-attempt retry
	// of a server error.
	// Default: 200ms
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// StoreConfig contains the shared health/quota store configuration.
type StoreConfig struct {
	// Backend selects the store implementation.
	// Options: "memory" (per-process), "sqlite" (shared across restarts
	// and co-located replicas)
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite contains settings for the sqlite backend.
	SQLite SQLiteStoreConfig `yaml:"sqlite"`
}

// SQLiteStoreConfig contains settings for the sqlite store backend.
type SQLiteStoreConfig struct {
	// Path is the database file path.
	// Default: "data/meridian.db"
	Path string `yaml:"path"`

	// Driver selects the SQLite driver implementation.
	// Options: "auto" (cgo when available, else pure Go), "cgo"
	// (github.com/mattn/go-sqlite3), "pure" (modernc.org/sqlite)
	// Default: "auto"
	Driver string `yaml:"driver"`

	// BusyTimeout is how long a locked database is retried before failing.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// MaxOpenConns limits open database connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns limits idle pooled connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// CleanupSchedule is a cron expression for expired-entry sweeps.
	// Default: "* * * * *" (every minute; health/quota TTLs are short)
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// EstimatorConfig contains token estimation configuration.
type EstimatorConfig struct {
	// CharsPerToken is the fallback characters-per-token ratio.
	// Default: 4.0
	CharsPerToken float64 `yaml:"chars_per_token"`

	// Models contains model-specific characters-per-token ratios, keyed by
	// canonical model id or prefix.
	Models map[string]float64 `yaml:"models"`
}

// ModelPricing contains pricing for a specific model.
type ModelPricing struct {
	// Prompt is the cost per 1K prompt tokens in USD.
	Prompt float64 `yaml:"prompt"`

	// Completion is the cost per 1K completion tokens in USD.
	Completion float64 `yaml:"completion"`
}

// ProviderConfig contains configuration for a single upstream provider.
type ProviderConfig struct {
	// Name is the human-readable display name.
	// Default: the provider id
	Name string `yaml:"name"`

	// Enabled controls whether this provider participates in routing.
	// Disabled providers are filtered out during alias expansion.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Kind selects the driver implementation.
	// Options: "openai-compatible", "cohere", "cloudflare", "pollinations",
	// "aihorde", "custom-auth"
	Kind string `yaml:"kind"`

	// Endpoint is the base URL for the provider's API. Optional for kinds
	// with a well-known default.
	Endpoint string `yaml:"endpoint"`

	// CredentialRef resolves to the API key or token. Supports indirection:
	// "env:NAME" reads the environment variable NAME, "file:/path" reads
	// the file contents, any other value is used literally.
	// Optional for keyless providers.
	CredentialRef string `yaml:"credential_ref"`

	// Tier is informational placement (lower = preferred); the free flag
	// decides the routing tier a provider lands in.
	// Default: 0
	Tier int `yaml:"tier"`

	// Free marks the provider as free-tier; free providers are tried
	// before paid ones.
	// Default: false
	Free bool `yaml:"free"`

	// RPMLimit is the declared requests-per-minute limit.
	// 0 means unlimited.
	RPMLimit int `yaml:"rpm_limit"`

	// TPMLimit is the declared tokens-per-minute limit.
	// 0 means unlimited.
	TPMLimit int `yaml:"tpm_limit"`

	// Models lists the provider-native model ids this provider serves.
	Models []string `yaml:"models"`

	// Timeout is the per-exchange HTTP timeout for this provider.
	// Default: resilience.attempt_timeout
	Timeout time.Duration `yaml:"timeout"`

	// Quirks holds driver-specific settings the core does not interpret
	// (e.g., cloudflare account_id, custom auth headers).
	Quirks map[string]string `yaml:"quirks"`
}

// IsEnabled reports whether the provider participates in routing.
func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// CanonicalModelConfig defines one model deployment.
type CanonicalModelConfig struct {
	// ID is the canonical model id (e.g., "groq/llama-3.3-70b").
	ID string `yaml:"id"`

	// ProviderID is the owning provider.
	ProviderID string `yaml:"provider_id"`

	// ModelPath is the provider-native model identifier sent upstream.
	ModelPath string `yaml:"model_path"`

	// ContextWindow is the model's context length in tokens (informational).
	ContextWindow int `yaml:"context_window"`

	// Capabilities flags what the deployment supports.
	Capabilities CapabilitiesConfig `yaml:"capabilities"`
}

// CapabilitiesConfig flags what a model deployment supports.
type CapabilitiesConfig struct {
	// Streaming indicates SSE streaming support.
	// Default: false
	Streaming bool `yaml:"streaming"`

	// Tools indicates function/tool calling support.
	Tools bool `yaml:"tools"`

	// Vision indicates image input support.
	Vision bool `yaml:"vision"`

	// StructuredOutput indicates JSON schema output support.
	StructuredOutput bool `yaml:"structured_output"`

	// LogProbs indicates log probability output support.
	LogProbs bool `yaml:"log_probs"`
}

// SourceConfig controls where configuration is loaded from.
type SourceConfig struct {
	// Type selects the configuration source.
	// Options: "file" (local file, optionally watched), "git" (repository,
	// polled)
	// Default: "file"
	Type string `yaml:"type"`

	// Watch enables automatic catalog reload when the config file changes.
	// Only used when Type is "file".
	// Default: false
	Watch bool `yaml:"watch"`

	// Git contains git repository configuration.
	// Only used when Type is "git".
	Git GitSourceConfig `yaml:"git"`
}

// GitSourceConfig configures git-based configuration loading.
type GitSourceConfig struct {
	// Repository URL (HTTPS or SSH).
	// Example: "https://github.com/company/gateway-config.git"
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path within the repository to the config file.
	// Default: "meridian.yaml"
	Path string `yaml:"path"`

	// LocalPath where the repository is cloned.
	// Default: system temp directory
	LocalPath string `yaml:"local_path"`

	// Auth configures git authentication.
	Auth GitAuthConfig `yaml:"auth"`

	// PollInterval between pulls.
	// Default: 60s
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollTimeout bounds one git operation.
	// Default: 10s
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// GitAuthConfig configures git authentication.
type GitAuthConfig struct {
	// Type: "token", "none"
	// Default: "none"
	Type string `yaml:"type"`

	// Token for HTTPS authentication (supports "env:NAME" indirection).
	// Required when Type is "token".
	Token string `yaml:"token"`
}

// ResolveCredential resolves a credential reference into its value.
// "env:NAME" reads the environment variable NAME, "file:/path" reads the
// trimmed file contents, anything else is returned as-is. An empty
// reference resolves to an empty credential (keyless provider).
func ResolveCredential(ref string) (string, error) {
	switch {
	case ref == "":
		return "", nil

	case strings.HasPrefix(ref, "env:"):
		name := strings.TrimPrefix(ref, "env:")
		val := os.Getenv(name)
		if val == "" {
			return "", fmt.Errorf("credential environment variable %q is not set", name)
		}
		return val, nil

	case strings.HasPrefix(ref, "file:"):
		path := strings.TrimPrefix(ref, "file:")
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read credential file %q: %w", path, err)
		}
		return strings.TrimSpace(string(data)), nil

	default:
		return ref, nil
	}
}
