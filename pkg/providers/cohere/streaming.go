package cohere

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"tycho-hq/meridian/pkg/providers"
)

const streamBuffer = 16

// errStreamDone marks the clean end of a stream: the message-end event has
// been delivered, or the connection closed cleanly.
var errStreamDone = errors.New("stream done")

// streamReader decodes Cohere's typed event stream.
type streamReader struct {
	client *providers.HTTPClient
	body   io.ReadCloser
	sse    *providers.SSEReader
	model  string

	messageID string
	ended     bool
	closed    bool
}

func openStream(ctx context.Context, client *providers.HTTPClient, url string, req *chatRequest, headers map[string]string, model string) (*streamReader, error) {
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
		model:  model,
	}, nil
}

// Read returns the next canonical chunk. message-end yields a terminal
// chunk carrying finish reason and usage; the next Read returns
// errStreamDone. A connection that breaks before message-end is an error.
func (s *streamReader) Read(ctx context.Context) (*providers.Chunk, error) {
	if s.closed || s.ended {
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

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return nil, &providers.ParseError{
				Provider:    s.client.ProviderID(),
				RawResponse: data,
				Cause:       fmt.Errorf("parse stream event: %w", err),
			}
		}

		switch event.Type {
		case eventMessageStart:
			s.messageID = event.ID
			continue

		case eventContentDelta:
			if event.Delta == nil || event.Delta.Message == nil || event.Delta.Message.Content == nil {
				continue
			}
			return &providers.Chunk{
				ID:    s.messageID,
				Model: s.model,
				Delta: event.Delta.Message.Content.Text,
			}, nil

		case eventMessageEnd:
			s.ended = true
			chunk := &providers.Chunk{
				ID:    s.messageID,
				Model: s.model,
			}
			if event.Delta != nil {
				chunk.FinishReason = normalizeFinishReason(event.Delta.FinishReason)
				if event.Delta.Usage != nil {
					usage := toUsage(event.Delta.Usage)
					chunk.Usage = &usage
				}
			}
			return chunk, nil

		default:
			// content-start, content-end, tool-plan and citation events
			// carry nothing the canonical stream needs.
			continue
		}
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
