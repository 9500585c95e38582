package proxy

import (
	"errors"
	"fmt"
	"strings"

	"tycho-hq/meridian/pkg/catalog"
	"tycho-hq/meridian/pkg/failover"
	"tycho-hq/meridian/pkg/gateway"
	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/proxy/types"
)

// HandleError converts gateway errors to the OpenAI error envelope.
//
// The interesting mappings: an unknown selector and an unsatisfiable
// request shape are the client's problem (400). Exhaustion is 429 when
// every attempt was rate limited, 400 when every attempt was rejected as
// malformed, and otherwise 503 carrying a per-attempt summary. Upstream
// auth failures surface as 502, never 401: the client's auth is not what
// failed.
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ToErrorResponse()
	}

	var valErr *providers.ValidationError
	if errors.As(err, &valErr) {
		return types.NewInvalidRequestError(valErr.Message, valErr.Field, types.CodeInvalidValue)
	}

	var unknownErr *catalog.UnknownModelError
	if errors.As(err, &unknownErr) {
		return types.NewInvalidRequestError(
			fmt.Sprintf("model %q does not exist", unknownErr.Selector),
			"model",
			types.CodeModelNotFound,
		)
	}

	var capErr *gateway.CapabilityError
	if errors.As(err, &capErr) {
		return types.NewInvalidRequestError(capErr.Error(), "", types.CodeCapabilityUnsupported)
	}

	var exhausted *failover.ExhaustedError
	if errors.As(err, &exhausted) {
		return handleExhausted(exhausted)
	}

	var rateErr *providers.RateLimitError
	if errors.As(err, &rateErr) {
		return types.NewRateLimitError(rateErr.Error())
	}

	var authErr *providers.AuthError
	if errors.As(err, &authErr) {
		return types.NewBadGatewayError("provider rejected the gateway's credentials")
	}

	var timeoutErr *providers.TimeoutError
	if errors.As(err, &timeoutErr) {
		return types.NewGatewayTimeoutError(timeoutErr.Error())
	}

	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		if provErr.StatusCode >= 400 && provErr.StatusCode < 500 {
			return types.NewInvalidRequestError(provErr.Message, "", types.CodeProviderError)
		}
		return types.NewBadGatewayError(provErr.Error())
	}

	return types.NewServerError("an internal error occurred")
}

func handleExhausted(err *failover.ExhaustedError) *types.ErrorResponse {
	if len(err.Attempts) == 0 {
		return types.NewServiceUnavailableError("no providers available for this model")
	}
	if err.AllRateLimited() {
		return types.NewRateLimitError(
			fmt.Sprintf("all %d candidate providers are rate limited", len(err.Attempts)))
	}
	if err.AllClientErrors() {
		return types.NewInvalidRequestError(
			fmt.Sprintf("every provider rejected the request: %s", summarizeAttempts(err.Attempts)),
			"", types.CodeInvalidValue)
	}
	return types.NewServiceUnavailableError(
		fmt.Sprintf("all providers exhausted: %s", summarizeAttempts(err.Attempts)))
}

// summarizeAttempts renders "model (class)" per attempt so the 503 body
// explains what was tried. Canonical ids already carry the provider.
func summarizeAttempts(attempts []failover.Attempt) string {
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		parts[i] = fmt.Sprintf("%s (%s)", a.Model, a.Class)
	}
	return strings.Join(parts, ", ")
}
