package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorClass partitions provider failures into the closed set the health
// and quota machinery understands. Every error a driver returns maps to
// exactly one class; anything unclassifiable is treated as ErrorClassServer.
type ErrorClass string

const (
	// ErrorClassNone means no failure was recorded.
	ErrorClassNone ErrorClass = "none"

	// ErrorClassRateLimited covers HTTP 429 and TPM overflow.
	ErrorClassRateLimited ErrorClass = "rate_limited"

	// ErrorClassAuth covers HTTP 401 and 403.
	ErrorClassAuth ErrorClass = "auth_error"

	// ErrorClassServer covers HTTP 5xx, network errors, and timeouts.
	ErrorClassServer ErrorClass = "server_error"

	// ErrorClassClient covers HTTP 400/404/422 and other request-shaped
	// failures that are not the provider's fault.
	ErrorClassClient ErrorClass = "client_error"
)

// ProviderError represents a general provider error with an HTTP status.
type ProviderError struct {
	// Provider is the id of the provider that returned the error
	Provider string

	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the error message
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// AuthError represents an authentication failure (HTTP 401 or 403).
type AuthError struct {
	// Provider is the id of the provider that rejected authentication
	Provider string

	// Message is the error message from the provider
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %q authentication failed: %s", e.Provider, e.Message)
}

// RateLimitError represents a rate limit exceeded error (HTTP 429).
// It includes the retry-after duration if the provider supplied one.
type RateLimitError struct {
	// Provider is the id of the provider that rate limited the request
	Provider string

	// RetryAfter is the duration to wait before retrying (0 if absent)
	RetryAfter time.Duration

	// Message is the error message from the provider
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %q rate limit exceeded (retry after %s): %s",
			e.Provider, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("provider %q rate limit exceeded: %s", e.Provider, e.Message)
}

// TimeoutError represents a request that exceeded its attempt deadline.
type TimeoutError struct {
	// Provider is the id of the provider where the timeout occurred
	Provider string

	// Timeout is the deadline that was exceeded
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %q request timeout after %s", e.Provider, e.Timeout)
}

// ParseError represents a malformed provider response.
type ParseError struct {
	// Provider is the id of the provider that returned the malformed response
	Provider string

	// RawResponse is the raw response body that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ValidationError represents a request validation failure detected before
// any provider is contacted.
type ValidationError struct {
	// Field is the name of the invalid field
	Field string

	// Message describes what is invalid about the field
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// StreamError represents an error that occurred during streaming.
// It travels through the chunk channel on the final chunk.
type StreamError struct {
	// Provider is the id of the provider where the error occurred
	Provider string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider %q stream error: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider %q stream error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}

// ConfigError represents an invalid driver configuration.
type ConfigError struct {
	// Provider is the id of the provider with invalid configuration
	Provider string

	// Field is the configuration field that is invalid
	Field string

	// Message describes the configuration error
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q configuration error for field %q: %s",
		e.Provider, e.Field, e.Message)
}

// Classify maps an error to its ErrorClass.
//
// Cancellation is deliberately not a class of its own here: callers that
// need to distinguish it check ctx.Err() or errors.Is against the context
// errors before classifying, because a cancelled attempt must never be
// charged to the provider.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorClassNone
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return ErrorClassRateLimited
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return ErrorClassAuth
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ErrorClassClient
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		switch providerErr.StatusCode {
		case 400, 404, 422:
			return ErrorClassClient
		case 401, 403:
			return ErrorClassAuth
		case 429:
			return ErrorClassRateLimited
		}
		return ErrorClassServer
	}

	// Timeouts, parse failures, stream breaks, network errors, and anything
	// a driver failed to classify all count against the provider.
	return ErrorClassServer
}

// RetryAfterHint extracts the provider-supplied retry-after duration from
// an error chain, if any.
func RetryAfterHint(err error) time.Duration {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr.RetryAfter
	}
	return 0
}

// IsCancellation reports whether err is caller cancellation rather than a
// provider failure.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
