package cloudflare

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

var errStreamDone = errors.New("stream done")

// streamReader decodes the Workers AI event stream: response fragments
// terminated by a [DONE] sentinel, with no finish reason of its own.
type streamReader struct {
	client *providers.HTTPClient
	body   io.ReadCloser
	sse    *providers.SSEReader
	model  string

	finished bool
	closed   bool
}

func openStream(ctx context.Context, client *providers.HTTPClient, url string, req *runRequest, headers map[string]string, model string) (*streamReader, error) {
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

// Read returns the next canonical chunk. At the [DONE] sentinel it emits one
// synthetic stop chunk so downstream consumers always see a finish reason,
// then reports errStreamDone.
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
			if s.finished {
				return nil, errStreamDone
			}
			s.finished = true
			return &providers.Chunk{
				Model:        s.model,
				FinishReason: providers.FinishReasonStop,
			}, nil
		}

		var fragment streamFragment
		if err := json.Unmarshal([]byte(data), &fragment); err != nil {
			return nil, &providers.ParseError{
				Provider:    s.client.ProviderID(),
				RawResponse: data,
				Cause:       fmt.Errorf("parse stream fragment: %w", err),
			}
		}

		chunk := &providers.Chunk{
			Model: s.model,
			Delta: fragment.Response,
		}
		if fragment.Usage != nil {
			usage := toUsage(fragment.Usage)
			chunk.Usage = &usage
		}
		if chunk.Delta == "" && chunk.Usage == nil {
			continue
		}
		return chunk, nil
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
