// Package metrics exports Prometheus metrics for the gateway.
//
// # Overview
//
// The Collector owns one Prometheus registry and every metric vector the
// gateway records:
//   - request counts, latency and first-token latency per provider/model
//   - token usage reported by upstream providers
//   - provider availability, classified errors and cooldown placements
//   - fallback depth and tier selection
//   - quota window consumption
//   - configuration reload outcomes
//
// # Usage
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	mux.Handle("/metrics", collector.Handler())
//
//	collector.RecordRequest("groq", "llama-3.1-8b", "success", 850*time.Millisecond)
//	collector.RecordTokens("groq", "llama-3.1-8b", 412, 96)
//
// # Cardinality
//
// Label values are bounded by the catalog (provider and model identifiers
// come from configuration, not from client input). A cardinality limiter
// guards the request series anyway; past 10000 unique label sets new
// models aggregate into "other".
package metrics
