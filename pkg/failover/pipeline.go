package failover

import (
	"context"
	"log/slog"
	"time"

	"tycho-hq/meridian/pkg/config"
	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/routing"
)

// DriverSource yields the driver registered for a provider.
// *providers.Registry satisfies it.
type DriverSource interface {
	Driver(providerID string) (providers.Driver, error)
}

// QuotaReserver is the request-budget surface the pipeline writes.
// *quota.Tracker satisfies it.
type QuotaReserver interface {
	Reserve(ctx context.Context, providerID string, now time.Time) bool
	CommitTokens(ctx context.Context, providerID string, tokens int64)
}

// Observer records per-attempt latencies for routing statistics.
// *routing.Stats satisfies it.
type Observer interface {
	Observe(providerID string, latency time.Duration, success bool)
}

// Pipeline executes one attempt against one candidate: reserve budget, call
// the driver under its timeouts, classify the result and commit token usage.
// It performs at most one internal retry, and only for transient upstream
// failures. It never touches provider health; recording outcomes is the
// orchestrator's job.
type Pipeline struct {
	drivers DriverSource
	quota   QuotaReserver
	stats   Observer

	attemptTimeout time.Duration
	ttfbTimeout    time.Duration
	retryBackoff   time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// NewPipeline builds an attempt pipeline from resilience settings.
func NewPipeline(drivers DriverSource, quotas QuotaReserver, stats Observer, cfg config.ResilienceConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		drivers:        drivers,
		quota:          quotas,
		stats:          stats,
		attemptTimeout: cfg.AttemptTimeout,
		ttfbTimeout:    cfg.TTFBTimeout,
		retryBackoff:   cfg.RetryBackoff,
		logger:         logger.With("component", "pipeline"),
		now:            time.Now,
	}
}

// Run executes one attempt for the given candidate. The request is cloned
// before the provider-specific model path is substituted, so the caller's
// request is never mutated. A denied budget reservation fails the attempt
// as rate limited without any upstream call.
func (p *Pipeline) Run(ctx context.Context, cand routing.Candidate, req *providers.Request) Outcome {
	out := Outcome{Provider: cand.Provider.ID, Model: cand.Model, Tier: cand.Tier}

	if !p.quota.Reserve(ctx, cand.Provider.ID, p.now()) {
		out.Err = &providers.RateLimitError{Provider: cand.Provider.ID, Message: "request budget exhausted"}
		out.Class = providers.ErrorClassRateLimited
		p.logger.Debug("reservation denied",
			"provider", cand.Provider.ID,
			"model", cand.Model.ID)
		return out
	}

	driver, err := p.drivers.Driver(cand.Provider.ID)
	if err != nil {
		return p.fail(ctx, out, err, 0)
	}

	attempt := req.Clone()
	attempt.Model = cand.Model.ModelPath

	if attempt.Stream {
		return p.runStream(ctx, driver, attempt, out)
	}
	return p.runComplete(ctx, driver, attempt, out)
}

func (p *Pipeline) runComplete(ctx context.Context, driver providers.Driver, req *providers.Request, out Outcome) Outcome {
	resp, latency, err := p.complete(ctx, driver, req)
	if err != nil && p.retryable(ctx, err) {
		p.logger.Debug("retrying after transient failure",
			"provider", out.Provider,
			"error", err)
		if !p.backoff(ctx) {
			return p.fail(ctx, out, err, latency)
		}
		resp, latency, err = p.complete(ctx, driver, req)
	}
	if err != nil {
		return p.fail(ctx, out, err, latency)
	}

	out.Response = resp
	out.Latency = latency
	p.quota.CommitTokens(context.WithoutCancel(ctx), out.Provider,
		int64(resp.Usage.PromptTokens+resp.Usage.CompletionTokens))
	p.stats.Observe(out.Provider, latency, true)
	return out
}

func (p *Pipeline) complete(ctx context.Context, driver providers.Driver, req *providers.Request) (*providers.Response, time.Duration, error) {
	attemptCtx := ctx
	if p.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, p.attemptTimeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := driver.Complete(attemptCtx, req)
	return resp, time.Since(start), err
}

func (p *Pipeline) runStream(ctx context.Context, driver providers.Driver, req *providers.Request, out Outcome) Outcome {
	upstream, first, latency, err := p.openStream(ctx, driver, req, out.Provider)
	if err != nil && p.retryable(ctx, err) {
		p.logger.Debug("retrying after transient failure",
			"provider", out.Provider,
			"error", err)
		if !p.backoff(ctx) {
			return p.fail(ctx, out, err, latency)
		}
		upstream, first, latency, err = p.openStream(ctx, driver, req, out.Provider)
	}
	if err != nil {
		return p.fail(ctx, out, err, latency)
	}

	out.Stream = upstream.relay(ctx, p, first)
	out.Latency = latency
	p.stats.Observe(out.Provider, latency, true)
	return out
}

// openStream starts the upstream stream and waits for its first chunk. The
// stream gets its own cancelable context so a stalled provider can be
// abandoned without touching the caller's context.
func (p *Pipeline) openStream(ctx context.Context, driver providers.Driver, req *providers.Request, providerID string) (*openedStream, *providers.Chunk, time.Duration, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	start := time.Now()

	ch, err := driver.Stream(streamCtx, req)
	if err != nil {
		cancel()
		return nil, nil, time.Since(start), err
	}

	var deadline <-chan time.Time
	if p.ttfbTimeout > 0 {
		timer := time.NewTimer(p.ttfbTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case chunk, ok := <-ch:
		latency := time.Since(start)
		if !ok {
			cancel()
			return nil, nil, latency, &providers.StreamError{Provider: providerID, Message: "stream closed before first chunk"}
		}
		if chunk.Err != nil {
			cancel()
			return nil, nil, latency, chunk.Err
		}
		return &openedStream{ch: ch, cancel: cancel, provider: providerID}, chunk, latency, nil
	case <-deadline:
		cancel()
		return nil, nil, time.Since(start), &providers.TimeoutError{Provider: providerID, Timeout: p.ttfbTimeout}
	case <-ctx.Done():
		cancel()
		return nil, nil, time.Since(start), ctx.Err()
	}
}

type openedStream struct {
	ch       <-chan *providers.Chunk
	cancel   context.CancelFunc
	provider string
}

// relay forwards upstream chunks to the consumer, committing token usage
// when the terminal usage chunk passes through. An error chunk is forwarded
// as-is and ends the relay; recovery after the first byte is the consumer's
// problem, not a reason to switch providers.
func (s *openedStream) relay(ctx context.Context, p *Pipeline, first *providers.Chunk) <-chan *providers.Chunk {
	out := make(chan *providers.Chunk)
	go func() {
		defer close(out)
		defer s.cancel()
		if !p.forward(ctx, out, s.provider, first) {
			return
		}
		if first.Err != nil {
			return
		}
		for chunk := range s.ch {
			if !p.forward(ctx, out, s.provider, chunk) {
				return
			}
			if chunk.Err != nil {
				return
			}
		}
	}()
	return out
}

// forward hands one chunk to the consumer. Returns false once the caller is
// gone so the relay can unwind and cancel the upstream.
func (p *Pipeline) forward(ctx context.Context, out chan<- *providers.Chunk, providerID string, chunk *providers.Chunk) bool {
	if chunk.Usage != nil {
		p.quota.CommitTokens(context.WithoutCancel(ctx), providerID,
			int64(chunk.Usage.PromptTokens+chunk.Usage.CompletionTokens))
	}
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// retryable permits the single in-attempt retry: only transient upstream
// failures qualify, and never once the caller's context is gone.
func (p *Pipeline) retryable(ctx context.Context, err error) bool {
	return ctx.Err() == nil && providers.Classify(err) == providers.ErrorClassServer
}

func (p *Pipeline) backoff(ctx context.Context) bool {
	if p.retryBackoff <= 0 {
		return true
	}
	select {
	case <-time.After(p.retryBackoff):
		return true
	case <-ctx.Done():
		return false
	}
}

// fail classifies a terminal attempt error. Caller cancellation is detected
// before classification so an abandoned request never counts against the
// provider's health or statistics.
func (p *Pipeline) fail(ctx context.Context, out Outcome, err error, latency time.Duration) Outcome {
	if ctx.Err() != nil {
		out.Cancelled = true
		out.Err = ctx.Err()
		return out
	}
	out.Err = err
	out.Class = providers.Classify(err)
	out.RetryAfter = providers.RetryAfterHint(err)
	out.Latency = latency
	p.stats.Observe(out.Provider, latency, false)
	return out
}
