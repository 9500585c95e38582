// Package logging configures structured logging with credential redaction.
//
// # Overview
//
// The logging package builds the process-wide log/slog logger from
// configuration:
//   - JSON or text output format
//   - Configurable minimum level (debug, info, warn, error)
//   - Optional file:line source annotations
//   - Automatic credential redaction on every record
//
// # Usage
//
//	logger, err := logging.Setup(cfg.Logging, os.Stdout)
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
// # Credential Redaction
//
// The gateway is configured with one API key per upstream provider.
// Redaction runs as a slog.Handler wrapper, so it covers every log call
// in the process including attributes bound with Logger.With:
//
//   - Authorization values: "Bearer sk-abc123..." becomes "Bearer ***"
//   - Prefixed keys: "gsk_abc123..." becomes "gsk_***"
//   - Sensitive attribute keys (credential, api_key, token, secret)
//     keep only a four-character prefix of their value
//
// Redaction is not configurable. A misrouted debug log must not be able
// to publish a provider credential.
package logging
