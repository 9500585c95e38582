package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"tycho-hq/meridian/pkg/config"
)

// Setup builds the process logger from configuration.
//
// The returned logger wraps its handler with credential redaction, so
// provider API keys and bearer tokens never reach the output writer even
// when a caller logs them by mistake. Callers typically install the
// result with slog.SetDefault.
func Setup(cfg config.LoggingConfig, writer io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	if writer == nil {
		writer = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json", "JSON", "":
		handler = slog.NewJSONHandler(writer, opts)
	case "text", "TEXT":
		handler = slog.NewTextHandler(writer, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %s", cfg.Format)
	}

	return slog.New(NewRedactingHandler(handler)), nil
}

// parseLevel parses a log level string into slog.Level.
func parseLevel(levelStr string) (slog.Level, error) {
	switch levelStr {
	case "debug", "DEBUG":
		return slog.LevelDebug, nil
	case "info", "INFO", "":
		return slog.LevelInfo, nil
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn, nil
	case "error", "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}
