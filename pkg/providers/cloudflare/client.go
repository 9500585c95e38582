package cloudflare

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"tycho-hq/meridian/pkg/providers"
)

// DefaultEndpoint is Cloudflare's production API base.
const DefaultEndpoint = "https://api.cloudflare.com"

// quirkAccountID names the account the Workers AI namespace lives under.
const quirkAccountID = "account_id"

// Driver serves Cloudflare Workers AI text generation models.
type Driver struct {
	client  *providers.HTTPClient
	baseURL string
}

// New creates a Workers AI driver. The account_id quirk and a credential
// are required.
func New(cfg providers.DriverConfig) (providers.Driver, error) {
	if cfg.ProviderID == "" {
		return nil, &providers.ConfigError{
			Provider: "cloudflare",
			Field:    "provider_id",
			Message:  "provider id is required",
		}
	}
	if cfg.Credential == "" {
		return nil, &providers.ConfigError{
			Provider: cfg.ProviderID,
			Field:    "credential",
			Message:  "API token is required for Workers AI",
		}
	}
	account := cfg.Quirks[quirkAccountID]
	if account == "" {
		return nil, &providers.ConfigError{
			Provider: cfg.ProviderID,
			Field:    "quirks.account_id",
			Message:  "account_id quirk is required for Workers AI",
		}
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	d := &Driver{
		client:  providers.NewHTTPClient(cfg),
		baseURL: strings.TrimSuffix(cfg.Endpoint, "/") + "/client/v4/accounts/" + account + "/ai/run/",
	}

	slog.Debug("cloudflare driver initialized",
		"provider", cfg.ProviderID,
		"account", account,
	)
	return d, nil
}

// Name returns the provider id this driver serves.
func (d *Driver) Name() string {
	return d.client.ProviderID()
}

// Kind returns the driver kind.
func (d *Driver) Kind() string {
	return "cloudflare"
}

// runURL splices the model into the account-scoped run path. Workers AI
// model names carry slashes ("@cf/meta/llama-3.1-8b-instruct") that must
// stay literal.
func (d *Driver) runURL(model string) string {
	return d.baseURL + strings.TrimPrefix(model, "/")
}

// Complete performs a non-streaming completion.
func (d *Driver) Complete(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	wireReq := transformRequest(req)
	wireReq.Stream = false

	var env envelope
	if err := d.client.DoJSON(ctx, "POST", d.runURL(req.Model), wireReq, &env, d.headers()); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, envelopeError(&env, d.Name())
	}

	result, err := decodeResult(env.Result, d.Name())
	if err != nil {
		return nil, err
	}

	resp := transformResponse(result, req.Model)
	slog.Debug("completion succeeded",
		"provider", d.Name(),
		"model", req.Model,
		"tokens", resp.Usage.TotalTokens,
	)
	return resp, nil
}

// Stream performs a streaming completion.
func (d *Driver) Stream(ctx context.Context, req *providers.Request) (<-chan *providers.Chunk, error) {
	wireReq := transformRequest(req)
	wireReq.Stream = true

	headers := d.headers()
	headers["Accept"] = "text/event-stream"

	reader, err := openStream(ctx, d.client, d.runURL(req.Model), wireReq, headers, req.Model)
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
