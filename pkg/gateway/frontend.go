package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"tycho-hq/meridian/pkg/catalog"
	"tycho-hq/meridian/pkg/failover"
	"tycho-hq/meridian/pkg/processing/tokens"
	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/routing"
)

// CatalogSource pins one configuration generation per request.
// *catalog.Handle satisfies it.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// Executor runs a validated request through the fallback tiers.
// *failover.Orchestrator satisfies it.
type Executor interface {
	Execute(ctx context.Context, cat *catalog.Catalog, req *providers.Request) (*failover.Result, error)
}

// Estimator predicts request token consumption. *tokens.Estimator
// satisfies it.
type Estimator interface {
	Request(req *providers.Request) tokens.Estimate
}

// Metadata is the routing attribution attached to every completed request.
// The transport adapter surfaces it as response headers, or as fields on
// the final stream frame.
type Metadata struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Tier       string `json:"tier"`
	Attempts   int    `json:"attempts"`
	Downgraded bool   `json:"downgraded,omitempty"`
}

// Result is a completed request: exactly one of Response or Stream is set.
type Result struct {
	Response *providers.Response
	Stream   <-chan *providers.Chunk
	Metadata Metadata
}

// Frontend is the single entry point the transport adapter calls. It
// validates the canonical request, settles the streaming question against
// the resolved models, fills in the token estimate, and delegates to the
// fallback orchestrator.
type Frontend struct {
	catalogs  CatalogSource
	executor  Executor
	estimator Estimator
	logger    *slog.Logger
}

// New builds a frontend. The estimator may be nil, in which case requests
// run without a token estimate.
func New(catalogs CatalogSource, executor Executor, estimator Estimator, logger *slog.Logger) *Frontend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Frontend{
		catalogs:  catalogs,
		executor:  executor,
		estimator: estimator,
		logger:    logger.With("component", "frontend"),
	}
}

// Run executes one request to completion. The frontend owns the request
// for the duration of the call and may rewrite its streaming flag when no
// resolved model can stream; the downgrade is reported in the result
// metadata. Unknown selectors and unsatisfiable request shapes fail here,
// before any attempt is made.
func (f *Frontend) Run(ctx context.Context, req *providers.Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	cat := f.catalogs.Current()
	models, err := cat.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	downgraded := false
	if req.Stream && !anyStreams(models) {
		req.Stream = false
		downgraded = true
		f.logger.Debug("stream downgraded to non-streaming",
			"model", req.Model)
	}

	if err := checkCapabilities(req, models); err != nil {
		return nil, err
	}

	if req.TokenEstimate == 0 && f.estimator != nil {
		req.TokenEstimate = f.estimator.Request(req).TotalTokens
	}

	res, err := f.executor.Execute(ctx, cat, req)
	if err != nil {
		return nil, err
	}

	return &Result{
		Response: res.Response,
		Stream:   res.Stream,
		Metadata: Metadata{
			Provider:   res.Provider,
			Model:      res.Model,
			Tier:       res.Tier.String(),
			Attempts:   res.Attempts,
			Downgraded: downgraded,
		},
	}, nil
}

func validate(req *providers.Request) error {
	if req.Model == "" {
		return &providers.ValidationError{Field: "model", Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return &providers.ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	for i, msg := range req.Messages {
		switch msg.Role {
		case providers.RoleSystem, providers.RoleUser, providers.RoleAssistant, providers.RoleTool:
		default:
			return &providers.ValidationError{
				Field:   fmt.Sprintf("messages[%d].role", i),
				Message: fmt.Sprintf("unknown role %q", msg.Role),
			}
		}
	}
	if req.MaxTokens < 0 {
		return &providers.ValidationError{Field: "max_tokens", Message: "must not be negative"}
	}
	return nil
}

func anyStreams(models []*catalog.CanonicalModel) bool {
	for _, m := range models {
		if m.Capabilities.Streaming {
			return true
		}
	}
	return false
}

// checkCapabilities rejects request shapes no resolved model can serve.
// Streaming never fails here: it was either downgraded away or at least
// one model streams.
func checkCapabilities(req *providers.Request, models []*catalog.CanonicalModel) error {
	for _, capability := range routing.RequiredCapabilities(req) {
		supported := false
		for _, m := range models {
			if m.Capabilities.Has(capability) {
				supported = true
				break
			}
		}
		if !supported {
			return &CapabilityError{Selector: req.Model, Capability: capability}
		}
	}
	return nil
}
