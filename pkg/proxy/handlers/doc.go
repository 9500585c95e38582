// Package handlers provides the HTTP endpoint handlers for the gateway.
//
// Endpoints:
//
//   - POST /v1/chat/completions: chat completions, JSON or SSE streaming
//   - GET  /v1/models: the routable aliases and canonical models
//   - GET  /health: liveness probe, always 200 while serving
//   - GET  /ready: readiness probe, 200 once a catalog with at least one
//     enabled provider is loaded
//   - GET  /health/providers: per-provider health and budget detail
//
// Each handler parses and validates its request, calls into the gateway
// frontend through a narrow interface, and renders the result in OpenAI
// wire shape. Streaming responses follow the SSE convention: "data: "
// prefixed JSON chunks, a final metadata chunk carrying usage and routing
// attribution, then "data: [DONE]". An upstream failure after the first
// byte is reported in-band as an error frame followed by [DONE]; the
// status line has already been sent and cannot change.
//
// Handlers never talk to providers directly. Everything behind the
// Frontend, CatalogSource, HealthSource, and QuotaSource interfaces is
// swappable in tests.
package handlers
