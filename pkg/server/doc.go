// Package server assembles the gateway's HTTP surface: routes, the
// middleware chain, TLS, and lifecycle management including graceful
// shutdown on SIGTERM/SIGINT.
//
// # Routes
//
//   - POST /v1/chat/completions - chat completion (streaming and non-streaming)
//   - GET /v1/models - models derived from the active catalog
//   - GET /health - liveness probe
//   - GET /ready - readiness probe (catalog loaded, at least one enabled provider)
//   - GET /health/providers - per-provider health and budget detail
//   - GET /metrics - Prometheus exposition (when metrics are enabled)
//
// # Usage
//
// The server is handed already-wired components through Deps:
//
//	srv := server.NewServer(cfg.Server, server.Deps{
//	    Frontend: frontend,
//	    Catalogs: store,
//	    Healths:  healthStore,
//	    Quotas:   quotaTracker,
//	    Metrics:  collector,
//	    Logger:   logger,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until the context is cancelled, a shutdown signal
// arrives, or the listener fails. Shutdown drains in-flight requests up
// to the configured shutdown timeout.
//
// # Middleware
//
// Requests pass through Recovery, Logging, RequestID, and CORS (in that
// order) before reaching the mux. There is no per-request timeout
// middleware; see pkg/proxy/middleware for the reasoning.
package server
