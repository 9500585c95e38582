package metrics

import (
	"tycho-hq/meridian/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderMetrics tracks upstream provider health.
//
// Metrics:
//   - meridian_provider_available: availability gauge (1=available, 0=cooling down)
//   - meridian_provider_errors_total: classified upstream failures
//   - meridian_provider_cooldowns_total: cooldown placements by class
type ProviderMetrics struct {
	available *prometheus.GaugeVec
	errors    *prometheus.CounterVec
	cooldowns *prometheus.CounterVec
}

// NewProviderMetrics creates and registers provider metrics with the
// provided registry.
func NewProviderMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *ProviderMetrics {
	pm := &ProviderMetrics{
		available: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "provider_available",
				Help:      "Provider availability (1=available, 0=cooling down)",
			},
			[]string{"provider"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "provider_errors_total",
				Help:      "Upstream failures by classification",
			},
			[]string{"provider", "class"},
		),

		cooldowns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "provider_cooldowns_total",
				Help:      "Cooldown placements by failure class",
			},
			[]string{"provider", "class"},
		),
	}

	registry.MustRegister(
		pm.available,
		pm.errors,
		pm.cooldowns,
	)

	return pm
}

// UpdateAvailability sets the availability gauge for a provider.
func (pm *ProviderMetrics) UpdateAvailability(provider string, available bool) {
	value := 0.0
	if available {
		value = 1.0
	}
	pm.available.WithLabelValues(provider).Set(value)
}

// RecordError counts a classified upstream failure.
func (pm *ProviderMetrics) RecordError(provider, class string) {
	pm.errors.WithLabelValues(provider, class).Inc()
}

// RecordCooldown counts a cooldown placement.
func (pm *ProviderMetrics) RecordCooldown(provider, class string) {
	pm.cooldowns.WithLabelValues(provider, class).Inc()
}
