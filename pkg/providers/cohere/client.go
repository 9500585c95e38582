package cohere

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"tycho-hq/meridian/pkg/providers"
)

// DefaultEndpoint is Cohere's production API base.
const DefaultEndpoint = "https://api.cohere.com"

// Driver serves Cohere's v2 chat API.
type Driver struct {
	client *providers.HTTPClient
	url    string
}

// New creates a Cohere driver. A credential is required; the endpoint
// defaults to the production API.
func New(cfg providers.DriverConfig) (providers.Driver, error) {
	if cfg.ProviderID == "" {
		return nil, &providers.ConfigError{
			Provider: "cohere",
			Field:    "provider_id",
			Message:  "provider id is required",
		}
	}
	if cfg.Credential == "" {
		return nil, &providers.ConfigError{
			Provider: cfg.ProviderID,
			Field:    "credential",
			Message:  "API key is required for Cohere",
		}
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	d := &Driver{
		client: providers.NewHTTPClient(cfg),
		url:    strings.TrimSuffix(cfg.Endpoint, "/") + "/v2/chat",
	}

	slog.Debug("cohere driver initialized",
		"provider", cfg.ProviderID,
		"endpoint", cfg.Endpoint,
	)
	return d, nil
}

// Name returns the provider id this driver serves.
func (d *Driver) Name() string {
	return d.client.ProviderID()
}

// Kind returns the driver kind.
func (d *Driver) Kind() string {
	return "cohere"
}

// Complete performs a non-streaming completion.
func (d *Driver) Complete(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	wireReq := transformRequest(req)
	wireReq.Stream = false

	var wireResp chatResponse
	if err := d.client.DoJSON(ctx, "POST", d.url, wireReq, &wireResp, d.headers()); err != nil {
		return nil, err
	}

	resp := transformResponse(&wireResp, req.Model)

	slog.Debug("completion succeeded",
		"provider", d.Name(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)
	return resp, nil
}

// Stream performs a streaming completion. Content deltas arrive per
// content-delta event; the message-end event carries the finish reason and
// usage and becomes the final chunk before close.
func (d *Driver) Stream(ctx context.Context, req *providers.Request) (<-chan *providers.Chunk, error) {
	wireReq := transformRequest(req)
	wireReq.Stream = true

	headers := d.headers()
	headers["Accept"] = "text/event-stream"

	reader, err := openStream(ctx, d.client, d.url, wireReq, headers, req.Model)
	if err != nil {
		return nil, err
	}

	chunks := make(chan *providers.Chunk, streamBuffer)
	go func() {
		defer close(chunks)
		defer reader.Close()

		for {
			chunk, err := reader.Read(ctx)
			if err != nil {
				if !errors.Is(err, errStreamDone) {
					chunks <- &providers.Chunk{Err: err}
				}
				return
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return chunks, nil
}

// Close releases idle connections.
func (d *Driver) Close() error {
	return d.client.Close()
}

func (d *Driver) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + d.client.Config().Credential,
		"Content-Type":  "application/json",
	}
}
