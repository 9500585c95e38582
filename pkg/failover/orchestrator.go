package failover

import (
	"context"
	"log/slog"
	"time"

	"tycho-hq/meridian/pkg/catalog"
	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/routing"
)

// CandidateSource produces routing candidates for a request.
// *routing.Router satisfies it.
type CandidateSource interface {
	Candidates(ctx context.Context, cat *catalog.Catalog, req *providers.Request, now time.Time) (*routing.Candidates, error)
}

// HealthRecorder receives attempt outcomes. *health.HealthStore satisfies it.
type HealthRecorder interface {
	RecordSuccess(ctx context.Context, providerID string)
	RecordFailure(ctx context.Context, providerID string, class providers.ErrorClass, retryAfterHint time.Duration)
}

// AttemptRunner executes a single attempt. *Pipeline satisfies it.
type AttemptRunner interface {
	Run(ctx context.Context, cand routing.Candidate, req *providers.Request) Outcome
}

// Result is a completed execution: the winning attempt's payload plus the
// attribution callers surface in response metadata.
type Result struct {
	Response *providers.Response
	Stream   <-chan *providers.Chunk

	Provider string
	Model    string
	Tier     routing.Tier
	Attempts int
}

// Orchestrator walks the routing tiers in order, running one attempt per
// candidate until one succeeds. Candidates are recomputed at each tier
// boundary so failures recorded earlier in the same request immediately
// narrow the remaining field.
type Orchestrator struct {
	router   CandidateSource
	pipeline AttemptRunner
	health   HealthRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// New builds an orchestrator over a candidate source, an attempt pipeline
// and a health recorder.
func New(router CandidateSource, pipeline AttemptRunner, health HealthRecorder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		router:   router,
		pipeline: pipeline,
		health:   health,
		logger:   logger.With("component", "orchestrator"),
		now:      time.Now,
	}
}

// Execute runs the request to completion. It returns the first successful
// attempt's result, the caller's cancellation error if the caller went away,
// or *ExhaustedError once every tier has been walked without a success. Once
// a streaming attempt has produced its first chunk the stream is committed;
// later stream failures surface inside the stream, never as a new attempt.
func (o *Orchestrator) Execute(ctx context.Context, cat *catalog.Catalog, req *providers.Request) (*Result, error) {
	var attempts []Attempt

	for _, tier := range routing.Tiers {
		cands, err := o.router.Candidates(ctx, cat, req, o.now())
		if err != nil {
			return nil, err
		}
		for _, cand := range cands.Tier(tier) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			outcome := o.pipeline.Run(ctx, cand, req)
			if outcome.Cancelled {
				o.logger.Debug("request cancelled mid-attempt",
					"provider", cand.Provider.ID,
					"model", cand.Model.ID)
				return nil, outcome.Err
			}
			if outcome.Success() {
				o.health.RecordSuccess(context.WithoutCancel(ctx), cand.Provider.ID)
				o.logger.Info("attempt succeeded",
					"provider", cand.Provider.ID,
					"model", cand.Model.ID,
					"tier", tier.String(),
					"attempts", len(attempts)+1,
					"latency", outcome.Latency)
				return &Result{
					Response: outcome.Response,
					Stream:   outcome.Stream,
					Provider: cand.Provider.ID,
					Model:    cand.Model.ID,
					Tier:     tier,
					Attempts: len(attempts) + 1,
				}, nil
			}

			o.health.RecordFailure(context.WithoutCancel(ctx), cand.Provider.ID, outcome.Class, outcome.RetryAfter)
			attempts = append(attempts, Attempt{
				Provider: cand.Provider.ID,
				Model:    cand.Model.ID,
				Tier:     tier.String(),
				Class:    outcome.Class,
			})
			o.logger.Warn("attempt failed",
				"provider", cand.Provider.ID,
				"model", cand.Model.ID,
				"tier", tier.String(),
				"class", string(outcome.Class),
				"error", outcome.Err)
		}
	}

	o.logger.Warn("all tiers exhausted", "attempts", len(attempts))
	return nil, &ExhaustedError{Attempts: attempts}
}
