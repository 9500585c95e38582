// Package telemetry groups the gateway's observability packages.
//
// # Components
//
//   - logging: structured log/slog setup with credential redaction
//   - metrics: Prometheus metrics collection and exposition
//
// # Usage
//
//	logger, err := logging.Setup(cfg.Logging, os.Stdout)
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Health and readiness endpoints live with the HTTP transport in
// pkg/proxy/handlers; they report catalog and provider state rather than
// process-level telemetry.
package telemetry
