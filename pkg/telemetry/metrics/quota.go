package metrics

import (
	"tycho-hq/meridian/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// QuotaMetrics tracks per-provider request budget consumption.
//
// Metrics:
//   - meridian_quota_window_requests: requests admitted in the current window
//   - meridian_quota_window_limit: configured per-window request limit
//   - meridian_quota_exhausted_total: reservations refused by a full window
type QuotaMetrics struct {
	windowUsed  *prometheus.GaugeVec
	windowLimit *prometheus.GaugeVec
	exhausted   *prometheus.CounterVec
}

// NewQuotaMetrics creates and registers quota metrics with the provided
// registry.
func NewQuotaMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *QuotaMetrics {
	qm := &QuotaMetrics{
		windowUsed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "quota_window_requests",
				Help:      "Requests admitted in the current window",
			},
			[]string{"provider"},
		),

		windowLimit: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "quota_window_limit",
				Help:      "Configured per-window request limit (0=unlimited)",
			},
			[]string{"provider"},
		),

		exhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "quota_exhausted_total",
				Help:      "Reservations refused because the window was full",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		qm.windowUsed,
		qm.windowLimit,
		qm.exhausted,
	)

	return qm
}

// UpdateUsage sets the window gauges for a provider.
func (qm *QuotaMetrics) UpdateUsage(provider string, used, limit int64) {
	qm.windowUsed.WithLabelValues(provider).Set(float64(used))
	qm.windowLimit.WithLabelValues(provider).Set(float64(limit))
}

// RecordExhausted counts a refused reservation.
func (qm *QuotaMetrics) RecordExhausted(provider string) {
	qm.exhausted.WithLabelValues(provider).Inc()
}
