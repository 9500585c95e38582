package providers

import (
	"context"
	"strings"
	"testing"
	"time"

	"tycho-hq/meridian/pkg/providers"
)

// TestDriverConfig returns a driver config pointed at the given base URL.
func TestDriverConfig(providerID, kind, baseURL string) providers.DriverConfig {
	return providers.DriverConfig{
		ProviderID: providerID,
		Kind:       kind,
		Endpoint:   baseURL,
		Credential: "test-key",
		Timeout:    5 * time.Second,
	}
}

// SimpleRequest builds a one-message canonical request.
func SimpleRequest(model, content string) *providers.Request {
	return &providers.Request{
		Model: model,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: content},
		},
	}
}

// ChatRequest builds a canonical request with a system prompt and user turn.
func ChatRequest(model, system, user string) *providers.Request {
	return &providers.Request{
		Model: model,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: system},
			{Role: providers.RoleUser, Content: user},
		},
	}
}

// StreamingRequest builds a canonical streaming request.
func StreamingRequest(model, content string) *providers.Request {
	req := SimpleRequest(model, content)
	req.Stream = true
	return req
}

// ToolRequest builds a canonical request advertising one function tool.
func ToolRequest(model, content, toolName string) *providers.Request {
	req := SimpleRequest(model, content)
	req.Tools = []providers.Tool{
		{
			Type: providers.ToolTypeFunction,
			Function: providers.ToolFunction{
				Name:        toolName,
				Description: "test tool",
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
		},
	}
	return req
}

// CollectChunks drains a stream channel, returning the chunks received
// before any error chunk and the error itself if one arrived.
func CollectChunks(t *testing.T, chunks <-chan *providers.Chunk) ([]*providers.Chunk, error) {
	t.Helper()

	var collected []*providers.Chunk
	for chunk := range chunks {
		if chunk.Err != nil {
			return collected, chunk.Err
		}
		collected = append(collected, chunk)
	}
	return collected, nil
}

// ConcatChunks joins the delta text from a chunk slice.
func ConcatChunks(chunks []*providers.Chunk) string {
	var b strings.Builder
	for _, chunk := range chunks {
		b.WriteString(chunk.Delta)
	}
	return b.String()
}

// WithTimeout runs fn under a deadline and fails the test on overrun.
func WithTimeout(t *testing.T, timeout time.Duration, fn func(ctx context.Context)) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		fn(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("test timeout after %s", timeout)
	}
}
