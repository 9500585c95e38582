package metrics

import (
	"tycho-hq/meridian/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RoutingMetrics tracks candidate selection and fallback behavior.
//
// Metrics:
//   - meridian_request_attempts: providers consumed per request
//   - meridian_tier_selections_total: tier that served each request
type RoutingMetrics struct {
	attempts       *prometheus.HistogramVec
	tierSelections *prometheus.CounterVec
}

// NewRoutingMetrics creates and registers routing metrics with the provided
// registry.
func NewRoutingMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *RoutingMetrics {
	rm := &RoutingMetrics{
		attempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_attempts",
				Help:      "Providers consumed per request before it settled",
				Buckets:   prometheus.LinearBuckets(1, 1, 8),
			},
			[]string{"model"},
		),

		tierSelections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "tier_selections_total",
				Help:      "Requests served per routing tier",
			},
			[]string{"tier"},
		),
	}

	registry.MustRegister(
		rm.attempts,
		rm.tierSelections,
	)

	return rm
}

// RecordAttempts records the attempt count for a settled request.
func (rm *RoutingMetrics) RecordAttempts(model string, attempts int) {
	rm.attempts.WithLabelValues(model).Observe(float64(attempts))
}

// RecordTierSelected counts a request served by the given tier.
func (rm *RoutingMetrics) RecordTierSelected(tier string) {
	rm.tierSelections.WithLabelValues(tier).Inc()
}
