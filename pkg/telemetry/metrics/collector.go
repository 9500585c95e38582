package metrics

import (
	"fmt"
	"sync"
	"time"

	"tycho-hq/meridian/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns every Prometheus metric the gateway exports. It registers
// all metric vectors against a single registry at construction and provides
// the recording interface the serving path calls.
//
// Recording stays cheap on the hot path:
//   - metric vectors are pre-registered, never created per request
//   - a cardinality limiter caps unique label combinations so unexpected
//     model identifiers cannot grow the registry without bound
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry
	enabled  bool

	requestMetrics  *RequestMetrics
	providerMetrics *ProviderMetrics
	routingMetrics  *RoutingMetrics
	quotaMetrics    *QuotaMetrics
	catalogMetrics  *CatalogMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a metrics collector backed by the given registry.
// If registry is nil a fresh one is used, which keeps gateway metrics
// separate from the default Go runtime registry.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "meridian"
	}
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		// Spans fast paid models through slow free tiers.
		cfg.RequestDurationBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		enabled:            cfg.Enabled == nil || *cfg.Enabled,
		cardinalityLimiter: NewCardinalityLimiter(10000),
	}

	c.requestMetrics = NewRequestMetrics(cfg, registry)
	c.providerMetrics = NewProviderMetrics(cfg, registry)
	c.routingMetrics = NewRoutingMetrics(cfg, registry)
	c.quotaMetrics = NewQuotaMetrics(cfg, registry)
	c.catalogMetrics = NewCatalogMetrics(cfg, registry)

	return c
}

// RecordRequest records a completed request.
//
// Outcome is "success", "error" or "rejected": rejected covers requests
// turned away before any upstream attempt (validation, unknown model).
// Requests that never reached a provider carry provider "none".
func (c *Collector) RecordRequest(provider, model, outcome string, duration time.Duration) {
	if !c.enabled {
		return
	}

	labelSet := fmt.Sprintf("request:%s:%s:%s", provider, model, outcome)
	if !c.cardinalityLimiter.Allow(labelSet) {
		// Aggregate overflow into "other" instead of minting new series.
		model = "other"
	}

	c.requestMetrics.RecordRequest(provider, model, outcome, duration)
}

// RecordTokens records the usage reported by the winning provider, split
// into prompt and completion tokens.
func (c *Collector) RecordTokens(provider, model string, promptTokens, completionTokens int) {
	if !c.enabled {
		return
	}

	c.requestMetrics.RecordTokens(provider, model, promptTokens, completionTokens)
}

// RecordTTFB records time to first streamed token.
func (c *Collector) RecordTTFB(provider, model string, ttfb time.Duration) {
	if !c.enabled {
		return
	}

	c.requestMetrics.RecordTTFB(provider, model, ttfb)
}

// RecordProviderError records a classified upstream failure. Class is the
// failure classification ("rate_limited", "auth", "server_error",
// "client_error", "timeout").
func (c *Collector) RecordProviderError(provider, class string) {
	if !c.enabled {
		return
	}

	c.providerMetrics.RecordError(provider, class)
}

// UpdateProviderHealth sets the provider availability gauge.
// 1=available, 0=cooling down.
func (c *Collector) UpdateProviderHealth(provider string, available bool) {
	if !c.enabled {
		return
	}

	c.providerMetrics.UpdateAvailability(provider, available)
}

// RecordCooldown counts a cooldown placement by failure class.
func (c *Collector) RecordCooldown(provider, class string) {
	if !c.enabled {
		return
	}

	c.providerMetrics.RecordCooldown(provider, class)
}

// RecordAttempts records how many providers a request consumed before it
// settled. A value above one means fallback ran.
func (c *Collector) RecordAttempts(model string, attempts int) {
	if !c.enabled {
		return
	}

	c.routingMetrics.RecordAttempts(model, attempts)
}

// RecordTierSelected counts which tier ultimately served a request.
func (c *Collector) RecordTierSelected(tier string) {
	if !c.enabled {
		return
	}

	c.routingMetrics.RecordTierSelected(tier)
}

// UpdateQuotaUsage sets the per-provider window gauges.
func (c *Collector) UpdateQuotaUsage(provider string, used, limit int64) {
	if !c.enabled {
		return
	}

	c.quotaMetrics.UpdateUsage(provider, used, limit)
}

// RecordQuotaExhausted counts a reservation refused by a full window.
func (c *Collector) RecordQuotaExhausted(provider string) {
	if !c.enabled {
		return
	}

	c.quotaMetrics.RecordExhausted(provider)
}

// RecordCatalogReload counts a configuration reload by outcome
// ("applied" or "rejected").
func (c *Collector) RecordCatalogReload(outcome string) {
	if !c.enabled {
		return
	}

	c.catalogMetrics.RecordReload(outcome)
}

// UpdateCatalogInfo sets the provider and model population gauges after a
// generation swap.
func (c *Collector) UpdateCatalogInfo(providersConfigured, providersEnabled, models int) {
	if !c.enabled {
		return
	}

	c.catalogMetrics.UpdateInfo(providersConfigured, providersEnabled, models)
}

// Enabled reports whether metrics collection and the exposition endpoint
// are switched on.
func (c *Collector) Enabled() bool {
	return c.enabled
}

// Path returns the HTTP path the exposition endpoint should be mounted on.
func (c *Collector) Path() string {
	return c.config.Path
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by capping the
// number of unique label combinations.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter with the given cap.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether a label set may be recorded. Known label sets are
// always allowed; new ones are admitted until the cap is reached.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
