// Package providers holds mock upstream servers and test helpers shared by
// the provider driver tests.
package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockServer simulates one upstream provider API for driver tests: JSON
// responses, SSE streams, classified errors, and slow responses.
type MockServer struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string]MockResponse
	sequences map[string][]MockResponse
	requests  []RecordedRequest
}

// MockResponse configures what the server returns for one path.
type MockResponse struct {
	StatusCode int
	Body       interface{}
	Headers    map[string]string
	Delay      time.Duration

	// StreamFrames, when set, turns the response into an SSE stream of
	// "data: <frame>" payloads followed by a [DONE] sentinel.
	StreamFrames []string

	// OmitDone suppresses the trailing [DONE] sentinel, simulating
	// upstreams that just close the connection.
	OmitDone bool

	// DropAfter closes the connection abruptly after this many frames,
	// simulating a mid-stream failure.
	DropAfter int
}

// RecordedRequest captures one request the mock server received.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// NewMockServer starts a mock upstream. Callers own Close.
func NewMockServer() *MockServer {
	ms := &MockServer{
		responses: make(map[string]MockResponse),
		sequences: make(map[string][]MockResponse),
	}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// URL returns the mock server's base URL.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Close shuts the server down.
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetResponse installs the response for a path.
func (ms *MockServer) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = response
}

// SetResponseSequence installs per-request responses for a path. Each
// request consumes one; the last repeats once the sequence runs out.
func (ms *MockServer) SetResponseSequence(path string, responses ...MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sequences[path] = append([]MockResponse(nil), responses...)
}

// RequestCount returns how many requests the server has received.
func (ms *MockServer) RequestCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.requests)
}

// Requests returns a copy of the recorded requests.
func (ms *MockServer) Requests() []RecordedRequest {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]RecordedRequest(nil), ms.requests...)
}

// LastRequest returns the most recent recorded request, or nil.
func (ms *MockServer) LastRequest() *RecordedRequest {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(ms.requests) == 0 {
		return nil
	}
	r := ms.requests[len(ms.requests)-1]
	return &r
}

func (ms *MockServer) handler(w http.ResponseWriter, r *http.Request) {
	body := make([]byte, 0)
	if r.Body != nil {
		buf := make([]byte, 1<<20)
		n, _ := r.Body.Read(buf)
		body = buf[:n]
	}

	ms.mu.Lock()
	ms.requests = append(ms.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	response, ok := ms.responses[r.URL.Path]
	if seq := ms.sequences[r.URL.Path]; len(seq) > 0 {
		response, ok = seq[0], true
		if len(seq) > 1 {
			ms.sequences[r.URL.Path] = seq[1:]
		}
	}
	ms.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		select {
		case <-time.After(response.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	if len(response.StreamFrames) > 0 {
		ms.streamResponse(w, response)
		return
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	switch v := response.Body.(type) {
	case nil:
	case string:
		_, _ = w.Write([]byte(v))
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (ms *MockServer) streamResponse(w http.ResponseWriter, response MockResponse) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	for i, frame := range response.StreamFrames {
		if response.DropAfter > 0 && i >= response.DropAfter {
			// Abrupt close: the hijacked connection dies without a
			// terminating frame.
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, err := hj.Hijack()
				if err == nil {
					conn.Close()
					return
				}
			}
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", frame)
		flusher.Flush()
	}

	if !response.OmitDone {
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}
}

// ==== canned upstream bodies ====

// OpenAIResponse builds an OpenAI-shaped completion body.
func OpenAIResponse(content, model string, promptTokens, completionTokens int) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-mock123",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	}
}

// OpenAIStreamFrame builds one OpenAI-shaped SSE chunk payload.
func OpenAIStreamFrame(delta, finishReason string) string {
	chunk := map[string]interface{}{
		"id":      "chatcmpl-mock123",
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   "mock-model",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"delta":         map[string]interface{}{"content": delta},
				"finish_reason": finishReason,
			},
		},
	}
	data, _ := json.Marshal(chunk)
	return string(data)
}

// OpenAIUsageFrame builds the trailing usage-only SSE payload sent when
// stream_options.include_usage is on.
func OpenAIUsageFrame(promptTokens, completionTokens int) string {
	chunk := map[string]interface{}{
		"id":      "chatcmpl-mock123",
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   "mock-model",
		"choices": []map[string]interface{}{},
		"usage": map[string]interface{}{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	}
	data, _ := json.Marshal(chunk)
	return string(data)
}

// CohereResponse builds a Cohere v2 chat response body.
func CohereResponse(text string, inputTokens, outputTokens int) map[string]interface{} {
	return map[string]interface{}{
		"id":            "cohere-mock123",
		"finish_reason": "COMPLETE",
		"message": map[string]interface{}{
			"role": "assistant",
			"content": []map[string]interface{}{
				{"type": "text", "text": text},
			},
		},
		"usage": map[string]interface{}{
			"billed_units": map[string]interface{}{
				"input_tokens":  inputTokens,
				"output_tokens": outputTokens,
			},
			"tokens": map[string]interface{}{
				"input_tokens":  inputTokens,
				"output_tokens": outputTokens,
			},
		},
	}
}

// CohereStreamFrame builds one Cohere v2 SSE event payload.
func CohereStreamFrame(eventType, text string) string {
	event := map[string]interface{}{"type": eventType}
	switch eventType {
	case "content-delta":
		event["delta"] = map[string]interface{}{
			"message": map[string]interface{}{
				"content": map[string]interface{}{"text": text},
			},
		}
	case "message-start":
		event["id"] = "cohere-mock123"
	}
	data, _ := json.Marshal(event)
	return string(data)
}

// CohereEndFrame builds the Cohere v2 message-end event with usage.
func CohereEndFrame(finishReason string, inputTokens, outputTokens int) string {
	event := map[string]interface{}{
		"type": "message-end",
		"delta": map[string]interface{}{
			"finish_reason": finishReason,
			"usage": map[string]interface{}{
				"billed_units": map[string]interface{}{
					"input_tokens":  inputTokens,
					"output_tokens": outputTokens,
				},
				"tokens": map[string]interface{}{
					"input_tokens":  inputTokens,
					"output_tokens": outputTokens,
				},
			},
		},
	}
	data, _ := json.Marshal(event)
	return string(data)
}

// CloudflareResponse builds a Workers AI result envelope.
func CloudflareResponse(text string, promptTokens, completionTokens int) map[string]interface{} {
	return map[string]interface{}{
		"success": true,
		"errors":  []interface{}{},
		"result": map[string]interface{}{
			"response": text,
			"usage": map[string]interface{}{
				"prompt_tokens":     promptTokens,
				"completion_tokens": completionTokens,
				"total_tokens":      promptTokens + completionTokens,
			},
		},
	}
}

// CloudflareStreamFrame builds one Workers AI SSE payload.
func CloudflareStreamFrame(text string) string {
	data, _ := json.Marshal(map[string]interface{}{"response": text})
	return string(data)
}

// CloudflareUsageFrame builds the final Workers AI SSE payload carrying
// usage alongside the last response fragment.
func CloudflareUsageFrame(text string, promptTokens, completionTokens int) string {
	data, _ := json.Marshal(map[string]interface{}{
		"response": text,
		"usage": map[string]interface{}{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	})
	return string(data)
}

// HordeSubmitResponse builds the AI Horde async-submit acknowledgement.
func HordeSubmitResponse(id string) map[string]interface{} {
	return map[string]interface{}{"id": id, "kudos": 2}
}

// HordeStatusResponse builds an AI Horde status body. Generations are only
// present once done is true.
func HordeStatusResponse(done bool, text string) map[string]interface{} {
	body := map[string]interface{}{
		"done":        done,
		"faulted":     false,
		"finished":    0,
		"processing":  1,
		"waiting":     0,
		"is_possible": true,
	}
	if done {
		body["finished"] = 1
		body["processing"] = 0
		body["generations"] = []map[string]interface{}{
			{"text": text, "model": "mock-horde-model", "state": "ok", "worker_name": "mock-worker"},
		}
	}
	return body
}

// HordeFaultedResponse builds an AI Horde status body for a failed job.
func HordeFaultedResponse() map[string]interface{} {
	return map[string]interface{}{
		"done":        false,
		"faulted":     true,
		"is_possible": true,
	}
}

// ==== canned error responses ====

// ErrorResponse builds an OpenAI-shaped error body with the given status.
func ErrorResponse(statusCode int, message string) MockResponse {
	return MockResponse{
		StatusCode: statusCode,
		Body: map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
				"type":    "invalid_request_error",
			},
		},
	}
}

// AuthErrorResponse builds a 401 body.
func AuthErrorResponse() MockResponse {
	return ErrorResponse(http.StatusUnauthorized, "invalid api key")
}

// RateLimitResponse builds a 429 body with a Retry-After header.
func RateLimitResponse(retryAfterSeconds int) MockResponse {
	resp := ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded")
	resp.Headers = map[string]string{
		"Retry-After": fmt.Sprintf("%d", retryAfterSeconds),
	}
	return resp
}

// ServerErrorResponse builds a 500 body.
func ServerErrorResponse() MockResponse {
	return ErrorResponse(http.StatusInternalServerError, "internal server error")
}
