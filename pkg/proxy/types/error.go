package types

// ErrorResponse is the OpenAI-compatible error envelope returned for every
// error condition so existing SDKs parse failures without changes.
type ErrorResponse struct {
	// Error contains the error details.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the error body.
type ErrorDetail struct {
	// Message is a human-readable description.
	Message string `json:"message"`

	// Type categorizes the error (invalid_request_error, rate_limit_exceeded,
	// bad_gateway, service_unavailable, gateway_timeout, server_error).
	Type string `json:"type"`

	// Param names the offending parameter, when one exists.
	Param string `json:"param,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// Error type constants matching the OpenAI API.
const (
	// ErrorTypeInvalidRequest indicates a client-side error (400).
	ErrorTypeInvalidRequest = "invalid_request_error"

	// ErrorTypeRateLimitExceeded indicates the upstream budget is spent (429).
	ErrorTypeRateLimitExceeded = "rate_limit_exceeded"

	// ErrorTypeServerError indicates an internal gateway error (500).
	ErrorTypeServerError = "server_error"

	// ErrorTypeBadGateway indicates an upstream provider failure (502).
	ErrorTypeBadGateway = "bad_gateway"

	// ErrorTypeServiceUnavailable indicates every tier was exhausted (503).
	ErrorTypeServiceUnavailable = "service_unavailable"

	// ErrorTypeGatewayTimeout indicates an upstream timeout (504).
	ErrorTypeGatewayTimeout = "gateway_timeout"
)

// Error code constants.
const (
	// CodeMissingField indicates a required field is missing.
	CodeMissingField = "missing_field"

	// CodeInvalidValue indicates a field holds an invalid value.
	CodeInvalidValue = "invalid_value"

	// CodeInvalidJSON indicates the body is not valid JSON.
	CodeInvalidJSON = "invalid_json"

	// CodeRequestTooLarge indicates the body exceeds the size limit.
	CodeRequestTooLarge = "request_too_large"

	// CodeModelNotFound indicates the selector matches nothing.
	CodeModelNotFound = "model_not_found"

	// CodeCapabilityUnsupported indicates no candidate model can serve the
	// request shape (tools, structured output, logprobs).
	CodeCapabilityUnsupported = "capability_unsupported"

	// CodeProviderError indicates an upstream provider failure.
	CodeProviderError = "provider_error"

	// CodeProviderTimeout indicates an upstream timeout.
	CodeProviderTimeout = "provider_timeout"

	// CodeAllProvidersExhausted indicates every candidate in every tier
	// failed.
	CodeAllProvidersExhausted = "all_providers_exhausted"

	// CodeRateLimited indicates every candidate was rate limited.
	CodeRateLimited = "rate_limited"

	// CodeInternalError indicates an internal gateway error.
	CodeInternalError = "internal_error"
)

// NewErrorResponse builds an error envelope.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// NewInvalidRequestError builds a 400 envelope.
func NewInvalidRequestError(message, param, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, param, code)
}

// NewServerError builds a 500 envelope.
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, "", CodeInternalError)
}

// NewBadGatewayError builds a 502 envelope.
func NewBadGatewayError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeBadGateway, "", CodeProviderError)
}

// NewServiceUnavailableError builds a 503 envelope.
func NewServiceUnavailableError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServiceUnavailable, "", CodeAllProvidersExhausted)
}

// NewRateLimitError builds a 429 envelope.
func NewRateLimitError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeRateLimitExceeded, "", CodeRateLimited)
}

// NewGatewayTimeoutError builds a 504 envelope.
func NewGatewayTimeoutError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeGatewayTimeout, "", CodeProviderTimeout)
}

// HTTPStatusCode maps the error type to its HTTP status.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return 400
	case ErrorTypeRateLimitExceeded:
		return 429
	case ErrorTypeServerError:
		return 500
	case ErrorTypeBadGateway:
		return 502
	case ErrorTypeServiceUnavailable:
		return 503
	case ErrorTypeGatewayTimeout:
		return 504
	default:
		return 500
	}
}
