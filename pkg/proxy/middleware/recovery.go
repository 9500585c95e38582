package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"tycho-hq/meridian/pkg/proxy/types"
)

// RecoveryMiddleware recovers from panics in HTTP handlers and returns a
// 500 in the OpenAI error format. The panic and stack trace are logged;
// clients see a generic message only.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"request_id", GetRequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				// If the handler already wrote a status line this will
				// log a superfluous-WriteHeader warning and the client
				// gets a truncated body, which is the best available
				// outcome mid-response.
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(types.NewServerError(
					"An internal error occurred. Please try again later.",
				))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
