package openaicompat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"tycho-hq/meridian/pkg/providers"
)

// Quirk keys this driver understands.
const (
	quirkAuthHeader    = "auth_header"
	quirkAuthPrefix    = "auth_prefix"
	quirkStreamOptions = "stream_options"
	quirkHeaderPrefix  = "header."
)

var errNoChoices = errors.New("no choices in response")

// Driver serves any upstream speaking the OpenAI chat completions format.
type Driver struct {
	client *providers.HTTPClient
	kind   string
	url    string
}

// New creates a driver for one OpenAI-compatible provider. The endpoint is
// required: unlike single-vendor kinds there is no well-known default that
// covers Groq, OpenRouter and a self-hosted vLLM at once.
func New(cfg providers.DriverConfig) (providers.Driver, error) {
	if cfg.ProviderID == "" {
		return nil, &providers.ConfigError{
			Provider: "openai-compatible",
			Field:    "provider_id",
			Message:  "provider id is required",
		}
	}
	if cfg.Endpoint == "" {
		return nil, &providers.ConfigError{
			Provider: cfg.ProviderID,
			Field:    "endpoint",
			Message:  "endpoint is required for openai-compatible providers",
		}
	}

	d := &Driver{
		client: providers.NewHTTPClient(cfg),
		kind:   cfg.Kind,
		url:    strings.TrimSuffix(cfg.Endpoint, "/") + "/chat/completions",
	}

	slog.Debug("openai-compatible driver initialized",
		"provider", cfg.ProviderID,
		"endpoint", cfg.Endpoint,
	)
	return d, nil
}

// Name returns the provider id this driver serves.
func (d *Driver) Name() string {
	return d.client.ProviderID()
}

// Kind returns the configured driver kind.
func (d *Driver) Kind() string {
	if d.kind == "" {
		return "openai-compatible"
	}
	return d.kind
}

// Complete performs a non-streaming completion.
func (d *Driver) Complete(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	wireReq := transformRequest(req)
	wireReq.Stream = false

	var wireResp chatResponse
	if err := d.client.DoJSON(ctx, "POST", d.url, wireReq, &wireResp, d.headers()); err != nil {
		return nil, err
	}

	resp, err := transformResponse(&wireResp, d.Name())
	if err != nil {
		return nil, err
	}

	slog.Debug("completion succeeded",
		"provider", d.Name(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)
	return resp, nil
}

// Stream performs a streaming completion. The returned channel yields
// content chunks, then the upstream's usage chunk when it sends one, then
// closes. Cancelling ctx tears down the upstream connection.
func (d *Driver) Stream(ctx context.Context, req *providers.Request) (<-chan *providers.Chunk, error) {
	wireReq := transformRequest(req)
	wireReq.Stream = true
	if d.client.Config().Quirks[quirkStreamOptions] != "off" {
		wireReq.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	headers := d.headers()
	headers["Accept"] = "text/event-stream"

	reader, err := openStream(ctx, d.client, d.url, wireReq, headers)
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
				// EOF is the normal end of stream; anything else reaches
				// the consumer as a final error chunk.
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

// headers assembles the per-request header set: credential placement per the
// auth quirks, plus any literal extra headers.
func (d *Driver) headers() map[string]string {
	cfg := d.client.Config()
	headers := map[string]string{
		"Content-Type": "application/json",
	}

	if cfg.Credential != "" {
		name := cfg.Quirks[quirkAuthHeader]
		prefix, hasPrefix := cfg.Quirks[quirkAuthPrefix]
		if name == "" {
			name = "Authorization"
			if !hasPrefix {
				prefix = "Bearer "
			}
		}
		headers[name] = prefix + cfg.Credential
	}

	for key, value := range cfg.Quirks {
		if h, ok := strings.CutPrefix(key, quirkHeaderPrefix); ok && h != "" {
			headers[h] = value
		}
	}

	return headers
}
