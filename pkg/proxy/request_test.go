package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tycho-hq/meridian/pkg/proxy/types"
)

func TestParseChatCompletionRequest(t *testing.T) {
	tests := []struct {
		name      string
		body      interface{}
		wantErr   bool
		wantCode  string
		wantParam string
	}{
		{
			name: "valid request with string content",
			body: types.ChatCompletionRequest{
				Model: "llama-3.3-70b",
				Messages: []types.Message{
					{Role: "user", Content: "Hello"},
				},
			},
		},
		{
			name: "valid request with multiple messages",
			body: types.ChatCompletionRequest{
				Model: "llama-3.3-70b",
				Messages: []types.Message{
					{Role: "system", Content: "You are a helpful assistant"},
					{Role: "user", Content: "Hello"},
				},
			},
		},
		{
			name: "valid request with optional parameters",
			body: func() types.ChatCompletionRequest {
				temp := 0.7
				maxTokens := 100
				return types.ChatCompletionRequest{
					Model:       "llama-3.3-70b",
					Messages:    []types.Message{{Role: "user", Content: "Hello"}},
					Temperature: &temp,
					MaxTokens:   &maxTokens,
				}
			}(),
		},
		{
			name: "valid request with tool calls",
			body: types.ChatCompletionRequest{
				Model: "llama-3.3-70b",
				Messages: []types.Message{
					{
						Role: "assistant",
						ToolCalls: []types.ToolCall{
							{
								ID:   "call_123",
								Type: "function",
								Function: types.FunctionCall{
									Name:      "get_weather",
									Arguments: `{"location": "Boston"}`,
								},
							},
						},
					},
				},
			},
		},
		{
			name:      "empty request body",
			body:      nil,
			wantErr:   true,
			wantCode:  types.CodeInvalidValue,
			wantParam: "model",
		},
		{
			name: "missing model",
			body: types.ChatCompletionRequest{
				Messages: []types.Message{{Role: "user", Content: "Hello"}},
			},
			wantErr:   true,
			wantCode:  types.CodeInvalidValue,
			wantParam: "model",
		},
		{
			name: "missing messages",
			body: types.ChatCompletionRequest{
				Model: "llama-3.3-70b",
			},
			wantErr:   true,
			wantCode:  types.CodeInvalidValue,
			wantParam: "messages",
		},
		{
			name: "temperature out of range",
			body: func() types.ChatCompletionRequest {
				temp := 3.0
				return types.ChatCompletionRequest{
					Model:       "llama-3.3-70b",
					Messages:    []types.Message{{Role: "user", Content: "Hello"}},
					Temperature: &temp,
				}
			}(),
			wantErr:   true,
			wantCode:  types.CodeInvalidValue,
			wantParam: "temperature",
		},
		{
			name: "n other than 1",
			body: func() types.ChatCompletionRequest {
				n := 3
				return types.ChatCompletionRequest{
					Model:    "llama-3.3-70b",
					Messages: []types.Message{{Role: "user", Content: "Hello"}},
					N:        &n,
				}
			}(),
			wantErr:   true,
			wantCode:  types.CodeInvalidValue,
			wantParam: "n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			var err error
			if tt.body != nil {
				body, err = json.Marshal(tt.body)
				if err != nil {
					t.Fatalf("marshal test body: %v", err)
				}
			} else {
				body = []byte("{}")
			}

			req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			got, err := ParseChatCompletionRequest(req)

			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseChatCompletionRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if got == nil {
					t.Error("ParseChatCompletionRequest() returned nil without error")
				}
				return
			}

			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("error type = %T, want *RequestError", err)
			}
			if reqErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", reqErr.Code, tt.wantCode)
			}
			if reqErr.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", reqErr.Param, tt.wantParam)
			}
		})
	}
}

func TestParseChatCompletionRequest_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("not json"))

	_, err := ParseChatCompletionRequest(req)

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v (%T), want *RequestError", err, err)
	}
	if reqErr.Code != types.CodeInvalidJSON {
		t.Errorf("Code = %q, want %q", reqErr.Code, types.CodeInvalidJSON)
	}
}

func TestParseChatCompletionRequest_BodyTooLarge(t *testing.T) {
	// Padding pushes the body past the cap. The size check runs before
	// the JSON parser sees the truncated read.
	padding := strings.Repeat("x", MaxRequestBodySize)
	body := `{"model": "llama-3.3-70b", "messages": [{"role": "user", "content": "` + padding + `"}]}`

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))

	_, err := ParseChatCompletionRequest(req)

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v (%T), want *RequestError", err, err)
	}
	if reqErr.Code != types.CodeRequestTooLarge {
		t.Errorf("Code = %q, want %q", reqErr.Code, types.CodeRequestTooLarge)
	}
}

func TestExtractRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	if got := ExtractRequestID(req); got != "" {
		t.Errorf("ExtractRequestID() = %q, want empty", got)
	}

	req.Header.Set(RequestIDHeader, "req-42")
	if got := ExtractRequestID(req); got != "req-42" {
		t.Errorf("ExtractRequestID() = %q, want %q", got, "req-42")
	}
}

func TestRequestError_ToErrorResponse(t *testing.T) {
	reqErr := &RequestError{
		Message: "temperature must be between 0.0 and 2.0",
		Code:    types.CodeInvalidValue,
		Param:   "temperature",
	}

	resp := reqErr.ToErrorResponse()
	if resp.Error.Type != types.ErrorTypeInvalidRequest {
		t.Errorf("Type = %q, want %q", resp.Error.Type, types.ErrorTypeInvalidRequest)
	}
	if resp.Error.HTTPStatusCode() != http.StatusBadRequest {
		t.Errorf("HTTPStatusCode() = %d, want %d", resp.Error.HTTPStatusCode(), http.StatusBadRequest)
	}
	if resp.Error.Param != "temperature" {
		t.Errorf("Param = %q, want %q", resp.Error.Param, "temperature")
	}
}
