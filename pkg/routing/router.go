package routing

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"tycho-hq/meridian/pkg/catalog"
	"tycho-hq/meridian/pkg/config"
	"tycho-hq/meridian/pkg/health"
	"tycho-hq/meridian/pkg/processing/costs"
	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/quota"
)

// Weights are the scoring weights. Each term is normalized to [0, 1] and
// lower is better, so the weighted sum is a penalty: the cheapest,
// fastest, most reliable candidate sorts first.
type Weights struct {
	Cost        float64
	Latency     float64
	Reliability float64
}

// Router produces tier-keyed ordered candidate lists for one request.
//
// The output is deterministic: given the same catalog generation, health
// and quota snapshots, stats window, and request, the same order comes
// back. Ties are broken by canonical model id.
type Router struct {
	health    HealthSource
	quota     QuotaSource
	stats     *Stats
	weights   Weights
	emergency bool
	logger    *slog.Logger
}

// New creates a Router from configuration. ApplyDefaults has already
// filled the weights and emergency flag.
func New(healthSrc HealthSource, quotaSrc QuotaSource, stats *Stats, cfg config.RoutingConfig, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	emergency := cfg.EmergencyTier.Enabled == nil || *cfg.EmergencyTier.Enabled
	return &Router{
		health: healthSrc,
		quota:  quotaSrc,
		stats:  stats,
		weights: Weights{
			Cost:        cfg.Weights.Cost,
			Latency:     cfg.Weights.Latency,
			Reliability: cfg.Weights.Reliability,
		},
		emergency: emergency,
		logger:    logger.With("component", "router"),
	}
}

// member is one resolved model annotated with everything scoring and
// partitioning need.
type member struct {
	model    *catalog.CanonicalModel
	provider *catalog.Provider
	entry    health.Entry
	rate     float64
	p50      time.Duration
	failRate float64
	score    float64
	eligible bool
}

// Candidates resolves the request's model selector against the given
// catalog generation and partitions the results into tiers.
//
// Disabled providers are excluded from every tier, including emergency.
// Candidates missing a capability the request demands are excluded from
// every tier. Health-ineligible and quota-exhausted candidates are
// excluded from tiers 1-3 but kept in the emergency tier, which exists
// precisely to retry them when nothing else is left.
func (r *Router) Candidates(ctx context.Context, cat *catalog.Catalog, req *providers.Request, now time.Time) (*Candidates, error) {
	models, err := cat.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	need := RequiredCapabilities(req)
	members := r.materialize(ctx, cat, models, need, now)
	r.score(members)

	out := &Candidates{}

	// Preferred: the first eligible member on the preferred provider, in
	// template order.
	preferredIdx := -1
	if req.PreferredProvider != "" {
		for i, m := range members {
			if m.provider.ID == req.PreferredProvider && m.eligible {
				preferredIdx = i
				out.Preferred = append(out.Preferred, candidate(m, TierPreferred))
				break
			}
		}
	}

	for i, m := range members {
		if i == preferredIdx || !m.eligible {
			continue
		}
		if m.provider.Free {
			out.Free = append(out.Free, candidate(m, TierFree))
		} else {
			out.Paid = append(out.Paid, candidate(m, TierPaid))
		}
	}
	sortByScore(out.Free)
	sortByScore(out.Paid)

	if r.emergency {
		for _, m := range members {
			out.Emergency = append(out.Emergency, candidate(m, TierEmergency))
		}
		sortByHealth(out.Emergency, members, now)
	}

	r.logger.Debug("routing pass",
		"selector", req.Model,
		"preferred", len(out.Preferred),
		"free", len(out.Free),
		"paid", len(out.Paid),
		"emergency", len(out.Emergency))

	return out, nil
}

// materialize turns resolved models into annotated members, dropping
// disabled providers and capability mismatches. Health and quota are
// fetched once per provider.
func (r *Router) materialize(ctx context.Context, cat *catalog.Catalog, models []*catalog.CanonicalModel, need []catalog.Capability, now time.Time) []member {
	type providerState struct {
		entry    health.Entry
		snap     quota.Entry
		p50      time.Duration
		failRate float64
	}
	states := make(map[string]providerState)

	var members []member
	for _, m := range models {
		p, err := cat.Provider(m.ProviderID)
		if err != nil {
			continue
		}
		if !p.Enabled {
			r.logger.Debug("candidate excluded",
				"model", m.ID,
				"reason", "provider disabled")
			continue
		}
		if !supportsAll(m, need) {
			r.logger.Debug("candidate excluded",
				"model", m.ID,
				"reason", "missing capability")
			continue
		}

		st, ok := states[p.ID]
		if !ok {
			st = providerState{
				entry:    r.health.Get(ctx, p.ID),
				snap:     r.quota.Snapshot(ctx, p.ID),
				p50:      r.stats.P50(p.ID),
				failRate: r.stats.FailureRate(p.ID),
			}
			states[p.ID] = st
		}

		eligible := st.entry.Eligible(now)
		if eligible && st.snap.RPMLimit > 0 && st.snap.Requests >= st.snap.RPMLimit {
			eligible = false
		}

		members = append(members, member{
			model:    m,
			provider: p,
			entry:    st.entry,
			rate:     costs.Rate(m.Pricing),
			p50:      st.p50,
			failRate: st.failRate,
			eligible: eligible,
		})
	}
	return members
}

// score fills each member's penalty. Cost and latency are normalized
// against the worst member in this pass so the terms stay comparable;
// failure rate is already in [0, 1].
func (r *Router) score(members []member) {
	var maxRate float64
	var maxP50 time.Duration
	for _, m := range members {
		if m.rate > maxRate {
			maxRate = m.rate
		}
		if m.p50 > maxP50 {
			maxP50 = m.p50
		}
	}

	for i := range members {
		var s float64
		if maxRate > 0 {
			s += r.weights.Cost * (members[i].rate / maxRate)
		}
		if maxP50 > 0 {
			s += r.weights.Latency * (float64(members[i].p50) / float64(maxP50))
		}
		s += r.weights.Reliability * members[i].failRate
		members[i].score = s
	}
}

func candidate(m member, t Tier) Candidate {
	return Candidate{
		Model:    m.model,
		Provider: m.provider,
		Tier:     t,
		Score:    m.score,
	}
}

func sortByScore(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score < cs[j].Score
		}
		return cs[i].Model.ID < cs[j].Model.ID
	})
}

// sortByHealth orders the emergency tier: providers whose cooldowns lapse
// soonest first, then fewer consecutive failures, then model id.
func sortByHealth(cs []Candidate, members []member, now time.Time) {
	orders := make(map[string]healthOrder, len(members))
	for _, m := range members {
		orders[m.model.ID] = healthOrder{
			cooldownRemaining: m.entry.CooldownRemaining(now),
			failures:          m.entry.ConsecutiveFailures,
		}
	}
	sort.Slice(cs, func(i, j int) bool {
		if less, decided := orders[cs[i].Model.ID].less(orders[cs[j].Model.ID]); decided {
			return less
		}
		return cs[i].Model.ID < cs[j].Model.ID
	})
}

func supportsAll(m *catalog.CanonicalModel, need []catalog.Capability) bool {
	for _, c := range need {
		if !m.Capabilities.Has(c) {
			return false
		}
	}
	return true
}
