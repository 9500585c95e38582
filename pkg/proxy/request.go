package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"tycho-hq/meridian/pkg/proxy/types"
)

const (
	// MaxRequestBodySize is the maximum allowed request body size (10MB).
	MaxRequestBodySize = 10 * 1024 * 1024

	// RequestIDHeader propagates the request id.
	RequestIDHeader = "X-Request-ID"
)

// ParseChatCompletionRequest reads and validates a chat completion body.
// The body is capped at MaxRequestBodySize; oversized, malformed and
// invalid requests all come back as *RequestError so the handler maps them
// to a 400 uniformly.
func ParseChatCompletionRequest(r *http.Request) (*types.ChatCompletionRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(body) >= MaxRequestBodySize {
		return nil, &RequestError{
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", MaxRequestBodySize),
			Code:    types.CodeRequestTooLarge,
			Param:   "body",
		}
	}

	var req types.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &RequestError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
			Code:    types.CodeInvalidJSON,
			Param:   "body",
		}
	}

	if err := req.Validate(); err != nil {
		var valErr *types.ValidationError
		if errors.As(err, &valErr) {
			return nil, &RequestError{
				Message: valErr.Message,
				Code:    types.CodeInvalidValue,
				Param:   valErr.Field,
			}
		}
		return nil, err
	}

	return &req, nil
}

// ExtractRequestID returns the client-provided request id, or empty when
// the middleware should generate one.
func ExtractRequestID(r *http.Request) string {
	return r.Header.Get(RequestIDHeader)
}

// RequestError is a parse or validation failure on the inbound request.
type RequestError struct {
	Message string
	Code    string
	Param   string
}

func (e *RequestError) Error() string {
	return e.Message
}

// ToErrorResponse converts the error to the OpenAI envelope.
func (e *RequestError) ToErrorResponse() *types.ErrorResponse {
	return types.NewInvalidRequestError(e.Message, e.Param, e.Code)
}
