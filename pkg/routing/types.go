package routing

import (
	"context"
	"time"

	"tycho-hq/meridian/pkg/catalog"
	"tycho-hq/meridian/pkg/health"
	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/quota"
)

// Tier is a priority band. The orchestrator walks tiers strictly in
// ascending order and never revisits an earlier one.
type Tier int

const (
	// TierPreferred holds the single candidate matching the request's
	// explicit provider preference.
	TierPreferred Tier = 1

	// TierFree holds candidates on free-tier providers.
	TierFree Tier = 2

	// TierPaid holds candidates on paid providers.
	TierPaid Tier = 3

	// TierEmergency holds every candidate again, ignoring health and
	// quota state, as the last resort before giving up.
	TierEmergency Tier = 4
)

// Tiers is the walk order.
var Tiers = []Tier{TierPreferred, TierFree, TierPaid, TierEmergency}

// String returns the tier name used in logs and response metadata.
func (t Tier) String() string {
	switch t {
	case TierPreferred:
		return "preferred"
	case TierFree:
		return "free"
	case TierPaid:
		return "paid"
	case TierEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Candidate is one (provider, canonical model) pair eligible for one
// attempt.
type Candidate struct {
	// Model is the canonical model to attempt.
	Model *catalog.CanonicalModel

	// Provider is the provider owning the model.
	Provider *catalog.Provider

	// Tier is the band this candidate was placed in.
	Tier Tier

	// Score is the weighted penalty the candidate was ordered by within
	// its tier. Lower is tried earlier.
	Score float64
}

// Candidates is the tier-keyed ordered output of one routing pass.
type Candidates struct {
	Preferred []Candidate
	Free      []Candidate
	Paid      []Candidate
	Emergency []Candidate
}

// Tier returns the ordered candidate list for one tier.
func (c *Candidates) Tier(t Tier) []Candidate {
	switch t {
	case TierPreferred:
		return c.Preferred
	case TierFree:
		return c.Free
	case TierPaid:
		return c.Paid
	case TierEmergency:
		return c.Emergency
	default:
		return nil
	}
}

// Empty reports whether no tier holds any candidate.
func (c *Candidates) Empty() bool {
	return len(c.Preferred) == 0 && len(c.Free) == 0 &&
		len(c.Paid) == 0 && len(c.Emergency) == 0
}

// HealthSource is the health view the router reads. *health.HealthStore
// satisfies it.
type HealthSource interface {
	Get(ctx context.Context, providerID string) health.Entry
}

// QuotaSource is the quota view the router reads for its best-effort RPM
// pre-filter. *quota.Tracker satisfies it.
type QuotaSource interface {
	Snapshot(ctx context.Context, providerID string) quota.Entry
}

// RequiredCapabilities derives the capabilities a request demands from
// its shape. A streaming request demands streaming; the execution
// frontend clears the flag first when it downgrades, so a downgraded
// request routes like a plain one.
func RequiredCapabilities(req *providers.Request) []catalog.Capability {
	var need []catalog.Capability
	if req.Stream {
		need = append(need, catalog.CapabilityStreaming)
	}
	if len(req.Tools) > 0 || req.ToolChoice != nil {
		need = append(need, catalog.CapabilityTools)
	}
	if format, ok := req.ResponseFormat["type"].(string); ok {
		if format == "json_object" || format == "json_schema" {
			need = append(need, catalog.CapabilityStructuredOutput)
		}
	}
	if req.LogProbs {
		need = append(need, catalog.CapabilityLogProbs)
	}
	return need
}

// healthOrder is the emergency-tier sort key: soonest-recovering first,
// then fewest consecutive failures.
type healthOrder struct {
	cooldownRemaining time.Duration
	failures          int
}

func (a healthOrder) less(b healthOrder) (bool, bool) {
	if a.cooldownRemaining != b.cooldownRemaining {
		return a.cooldownRemaining < b.cooldownRemaining, true
	}
	if a.failures != b.failures {
		return a.failures < b.failures, true
	}
	return false, false
}
