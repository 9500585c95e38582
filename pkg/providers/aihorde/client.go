package aihorde

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tycho-hq/meridian/pkg/providers"
)

const (
	// DefaultEndpoint is the AI Horde production API base.
	DefaultEndpoint = "https://aihorde.net"

	// AnonymousKey is the Horde's shared anonymous credential. Anonymous
	// jobs run at the lowest priority but need no registration.
	AnonymousKey = "0000000000"

	// defaultPollInterval spaces status polls; the Horde asks clients not
	// to poll more than once every couple of seconds.
	defaultPollInterval = 2 * time.Second

	// quirkPollInterval overrides the poll spacing, in seconds.
	quirkPollInterval = "poll_interval"
)

const streamBuffer = 1

// Driver serves the AI Horde's asynchronous text generation API.
type Driver struct {
	client  *providers.HTTPClient
	baseURL string
	poller  *rate.Limiter
}

// New creates an AI Horde driver. A missing credential falls back to the
// anonymous key.
func New(cfg providers.DriverConfig) (providers.Driver, error) {
	if cfg.ProviderID == "" {
		return nil, &providers.ConfigError{
			Provider: "aihorde",
			Field:    "provider_id",
			Message:  "provider id is required",
		}
	}
	if cfg.Credential == "" {
		cfg.Credential = AnonymousKey
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	interval := defaultPollInterval
	if raw := cfg.Quirks[quirkPollInterval]; raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return nil, &providers.ConfigError{
				Provider: cfg.ProviderID,
				Field:    "quirks.poll_interval",
				Message:  "poll_interval must be a positive integer of seconds",
			}
		}
		interval = time.Duration(seconds) * time.Second
	}

	d := &Driver{
		client:  providers.NewHTTPClient(cfg),
		baseURL: strings.TrimSuffix(cfg.Endpoint, "/"),
		poller:  rate.NewLimiter(rate.Every(interval), 1),
	}

	slog.Debug("aihorde driver initialized",
		"provider", cfg.ProviderID,
		"endpoint", cfg.Endpoint,
		"anonymous", cfg.Credential == AnonymousKey,
		"poll_interval", interval,
	)
	return d, nil
}

// Name returns the provider id this driver serves.
func (d *Driver) Name() string {
	return d.client.ProviderID()
}

// Kind returns the driver kind.
func (d *Driver) Kind() string {
	return "aihorde"
}

// Complete submits a generation job and polls it to completion. The overall
// wait is bounded by ctx, which the resilience layer sets per attempt.
func (d *Driver) Complete(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	wireReq := transformRequest(req)

	var submitted submitResponse
	submitURL := d.baseURL + "/api/v2/generate/text/async"
	if err := d.client.DoJSON(ctx, "POST", submitURL, wireReq, &submitted, d.headers()); err != nil {
		return nil, err
	}
	if submitted.ID == "" {
		return nil, &providers.ParseError{
			Provider: d.Name(),
			Cause:    fmt.Errorf("submit accepted without a job id"),
		}
	}

	slog.Debug("horde job submitted",
		"provider", d.Name(),
		"job", submitted.ID,
		"kudos", submitted.Kudos,
	)

	resp, err := d.poll(ctx, submitted.ID, req.Model, len(wireReq.Prompt))
	if err != nil {
		// Leaving an abandoned job queued wastes worker time. Cancel runs
		// outside the dead request context and is harmless for jobs that
		// already ended.
		d.cancelJob(submitted.ID)
		return nil, err
	}
	return resp, nil
}

// poll watches the job until it finishes, faults, or ctx expires.
func (d *Driver) poll(ctx context.Context, jobID, model string, promptChars int) (*providers.Response, error) {
	statusURL := d.baseURL + "/api/v2/generate/text/status/" + jobID

	for {
		if err := d.poller.Wait(ctx); err != nil {
			// Wait also fails when the next slot falls past the context
			// deadline, before ctx itself reports done.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &providers.TimeoutError{Provider: d.Name()}
		}

		var status statusResponse
		if err := d.client.DoJSON(ctx, "GET", statusURL, nil, &status, d.headers()); err != nil {
			return nil, err
		}

		switch {
		case status.Faulted:
			return nil, &providers.ProviderError{
				Provider:   d.Name(),
				StatusCode: 500,
				Message:    "horde job faulted",
			}

		case status.Done:
			if len(status.Generations) == 0 {
				return nil, &providers.ParseError{
					Provider: d.Name(),
					Cause:    fmt.Errorf("job %s done without generations", jobID),
				}
			}
			return transformStatus(&status, jobID, model, promptChars), nil

		case !status.IsPossible:
			// No connected worker can serve this request; waiting longer
			// will not help.
			return nil, &providers.ProviderError{
				Provider:   d.Name(),
				StatusCode: 503,
				Message:    "no horde worker can serve this model",
			}
		}

		slog.Debug("horde job pending",
			"provider", d.Name(),
			"job", jobID,
			"queue_position", status.QueuePos,
			"processing", status.Processing,
		)
	}
}

// cancelJob deletes a pending job so a worker does not generate for a
// caller that already gave up. Best effort, never blocks the caller path.
func (d *Driver) cancelJob(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := d.baseURL + "/api/v2/generate/text/status/" + jobID
	if err := d.client.DoJSON(ctx, "DELETE", url, nil, nil, d.headers()); err != nil {
		slog.Debug("horde job cancellation failed", "job", jobID, "error", err)
		return
	}
	slog.Debug("horde job cancelled", "provider", d.Name(), "job", jobID)
}

// Stream emulates streaming: the Horde has no incremental transport, so the
// finished completion arrives as a single chunk carrying the finish reason
// and estimated usage. The catalog marks horde models non-streaming, which
// routes streaming callers through the downgrade path to land here.
func (d *Driver) Stream(ctx context.Context, req *providers.Request) (<-chan *providers.Chunk, error) {
	resp, err := d.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	chunks := make(chan *providers.Chunk, streamBuffer)
	usage := resp.Usage
	chunks <- &providers.Chunk{
		ID:           resp.ID,
		Model:        resp.Model,
		Delta:        resp.Content,
		FinishReason: resp.FinishReason,
		Usage:        &usage,
	}
	close(chunks)
	return chunks, nil
}

// Close releases idle connections.
func (d *Driver) Close() error {
	return d.client.Close()
}

func (d *Driver) headers() map[string]string {
	return map[string]string{
		"apikey":       d.client.Config().Credential,
		"Content-Type": "application/json",
	}
}
