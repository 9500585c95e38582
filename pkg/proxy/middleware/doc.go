// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// # Middleware Chain
//
// The server assembles the chain outermost first:
//
//	handler = Recovery(Logging(RequestID(CORS(handler))))
//
// Recovery sits outermost so a panic anywhere below still produces a
// well-formed 500. Logging wraps RequestID's output so completion entries
// carry the ID. CORS runs innermost because preflight responses need no
// request ID or logging beyond the access line.
//
// # Middleware Types
//
//   - RequestIDMiddleware: assign a UUID per request (client-supplied
//     X-Request-ID honored), propagate via context and response header
//   - LoggingMiddleware: structured completion log with method, path,
//     status, latency, request ID
//   - CORSMiddleware: CORS headers and preflight handling for browser
//     clients; exposes the X-Meridian-* attribution headers
//   - RecoveryMiddleware: catch panics, log the stack, return an
//     OpenAI-format 500
//
// There is no per-request timeout middleware. Non-streaming work is
// bounded by the per-attempt budgets in the dispatch pipeline, streaming
// responses may legitimately outlive any fixed request deadline, and the
// transport-level read/write timeouts on the http.Server cap the rest.
//
// # Context Values
//
// Middleware stores values in context for handler access:
//
//	requestID := middleware.GetRequestID(r.Context())
//	start := middleware.GetStartTime(r.Context())
//
// The logging response writer forwards http.Flusher, so SSE handlers
// can flush through the wrapped writer.
package middleware
