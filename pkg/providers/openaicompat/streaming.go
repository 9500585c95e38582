package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"tycho-hq/meridian/pkg/providers"
)

// streamBuffer sizes the chunk channel so a slow consumer does not
// immediately stall the SSE read loop.
const streamBuffer = 16

// errStreamDone marks the clean end of a stream: the [DONE] sentinel or a
// clean EOF after it.
var errStreamDone = errors.New("stream done")

// streamReader decodes the SSE stream of an OpenAI-compatible upstream.
type streamReader struct {
	client *providers.HTTPClient
	body   io.ReadCloser
	sse    *providers.SSEReader
	closed bool
}

// openStream issues the streaming request and wraps the response body.
func openStream(ctx context.Context, client *providers.HTTPClient, url string, req *chatRequest, headers map[string]string) (*streamReader, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal stream request: %w", err)
	}

	resp, err := client.Do(ctx, http.MethodPost, url, body, headers)
	if err != nil {
		return nil, err
	}

	return &streamReader{
		client: client,
		body:   resp.Body,
		sse:    providers.NewSSEReader(resp.Body),
	}, nil
}

// Read returns the next canonical chunk. It returns errStreamDone at the
// [DONE] sentinel or a clean connection close, and a classified error when
// the connection breaks or the upstream embeds an error object.
func (s *streamReader) Read(ctx context.Context) (*providers.Chunk, error) {
	if s.closed {
		return nil, errStreamDone
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := s.sse.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errStreamDone
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &providers.StreamError{
				Provider: s.client.ProviderID(),
				Message:  "stream read failed",
				Cause:    err,
			}
		}

		if data == "[DONE]" {
			return nil, errStreamDone
		}
		// Keepalive comments (OpenRouter sends ": OPENROUTER PROCESSING"
		// as a data payload) carry nothing.
		if strings.HasPrefix(data, ":") {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, &providers.ParseError{
				Provider:    s.client.ProviderID(),
				RawResponse: data,
				Cause:       fmt.Errorf("parse stream chunk: %w", err),
			}
		}

		// Some upstreams report failures mid-stream as an error object
		// rather than breaking the connection.
		if chunk.Error != nil && chunk.Error.Message != "" {
			return nil, &providers.StreamError{
				Provider: s.client.ProviderID(),
				Message:  chunk.Error.Message,
			}
		}

		out := transformStreamChunk(&chunk)
		if out.Delta == "" && out.FinishReason == "" && len(out.ToolCalls) == 0 && out.Usage == nil {
			// Role-only or otherwise empty frame; nothing to deliver.
			continue
		}
		return out, nil
	}
}

// Close releases the underlying connection.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
