package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListen          = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 5 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// TLS defaults
	DefaultTLSMinVersion = "1.3"

	// CORS defaults
	DefaultCORSMaxAge = 3600

	// Logging defaults
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "json"

	// Metrics defaults
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "meridian"

	// Routing defaults
	DefaultWeightCost        = 0.5
	DefaultWeightLatency     = 0.3
	DefaultWeightReliability = 0.2
	DefaultStatsWindowSize   = 64

	// Resilience defaults
	DefaultAttemptTimeout = 30 * time.Second
	DefaultTTFBTimeout    = 10 * time.Second
	DefaultRetryBackoff   = 200 * time.Millisecond

	// Store defaults
	DefaultStoreBackend          = "memory"
	DefaultSQLitePath            = "data/meridian.db"
	DefaultSQLiteDriver          = "auto"
	DefaultSQLiteBusyTimeout     = 5 * time.Second
	DefaultSQLiteMaxOpenConns    = 10
	DefaultSQLiteMaxIdleConns    = 5
	DefaultSQLiteCleanupSchedule = "* * * * *"

	// Estimator defaults
	DefaultCharsPerToken = 4.0

	// Source defaults
	DefaultSourceType      = "file"
	DefaultGitBranch       = "main"
	DefaultGitPath         = "meridian.yaml"
	DefaultGitAuthType     = "none"
	DefaultGitPollInterval = 60 * time.Second
	DefaultGitPollTimeout  = 10 * time.Second
)

// DefaultRequestDurationBuckets are the histogram buckets for request
// duration in seconds.
var DefaultRequestDurationBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
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
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}

	// CORS defaults
	if cfg.Server.CORS.Enabled == nil {
		cfg.Server.CORS.Enabled = boolPtr(true)
	}
	if len(cfg.Server.CORS.AllowedOrigins) == 0 {
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	// Metrics defaults
	if cfg.Telemetry.Metrics.Enabled == nil {
		cfg.Telemetry.Metrics.Enabled = boolPtr(true)
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = DefaultRequestDurationBuckets
	}

	// Routing defaults. Weights are defaulted as a set: if none are given
	// the standard split applies; a partially specified set is kept as-is
	// so an explicit zero weight stays zero.
	if cfg.Routing.Weights == (WeightsConfig{}) {
		cfg.Routing.Weights = WeightsConfig{
			Cost:        DefaultWeightCost,
			Latency:     DefaultWeightLatency,
			Reliability: DefaultWeightReliability,
		}
	}
	if cfg.Routing.EmergencyTier.Enabled == nil {
		cfg.Routing.EmergencyTier.Enabled = boolPtr(true)
	}
	if cfg.Routing.StatsWindowSize == 0 {
		cfg.Routing.StatsWindowSize = DefaultStatsWindowSize
	}

	// Resilience defaults
	if cfg.Resilience.AttemptTimeout == 0 {
		cfg.Resilience.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.Resilience.TTFBTimeout == 0 {
		cfg.Resilience.TTFBTimeout = DefaultTTFBTimeout
	}
	if cfg.Resilience.RetryBackoff == 0 {
		cfg.Resilience.RetryBackoff = DefaultRetryBackoff
	}

	// Store defaults
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Store.SQLite.Driver == "" {
		cfg.Store.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Store.SQLite.BusyTimeout == 0 {
		cfg.Store.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Store.SQLite.MaxOpenConns == 0 {
		cfg.Store.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Store.SQLite.MaxIdleConns == 0 {
		cfg.Store.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.Store.SQLite.CleanupSchedule == "" {
		cfg.Store.SQLite.CleanupSchedule = DefaultSQLiteCleanupSchedule
	}

	// Estimator defaults
	if cfg.Estimator.CharsPerToken == 0 {
		cfg.Estimator.CharsPerToken = DefaultCharsPerToken
	}

	// Provider defaults
	for id, provider := range cfg.Providers {
		if provider.Name == "" {
			provider.Name = id
		}
		if provider.Timeout == 0 {
			provider.Timeout = cfg.Resilience.AttemptTimeout
		}
		cfg.Providers[id] = provider
	}

	// Source defaults
	if cfg.Source.Type == "" {
		cfg.Source.Type = DefaultSourceType
	}
	if cfg.Source.Git.Branch == "" {
		cfg.Source.Git.Branch = DefaultGitBranch
	}
	if cfg.Source.Git.Path == "" {
		cfg.Source.Git.Path = DefaultGitPath
	}
	if cfg.Source.Git.Auth.Type == "" {
		cfg.Source.Git.Auth.Type = DefaultGitAuthType
	}
	if cfg.Source.Git.PollInterval == 0 {
		cfg.Source.Git.PollInterval = DefaultGitPollInterval
	}
	if cfg.Source.Git.PollTimeout == 0 {
		cfg.Source.Git.PollTimeout = DefaultGitPollTimeout
	}
}

func boolPtr(b bool) *bool {
	return &b
}
