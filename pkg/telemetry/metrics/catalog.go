package metrics

import (
	"tycho-hq/meridian/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CatalogMetrics tracks configuration generations.
//
// Metrics:
//   - meridian_catalog_reloads_total: reload attempts by outcome
//   - meridian_catalog_providers: provider counts by state
//   - meridian_catalog_models: canonical model count
type CatalogMetrics struct {
	reloads   *prometheus.CounterVec
	providers *prometheus.GaugeVec
	models    prometheus.Gauge
}

// NewCatalogMetrics creates and registers catalog metrics with the provided
// registry.
func NewCatalogMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *CatalogMetrics {
	cm := &CatalogMetrics{
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "catalog_reloads_total",
				Help:      "Configuration reload attempts by outcome",
			},
			[]string{"outcome"},
		),

		providers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "catalog_providers",
				Help:      "Providers in the active generation by state",
			},
			[]string{"state"},
		),

		models: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "catalog_models",
				Help:      "Canonical models in the active generation",
			},
		),
	}

	registry.MustRegister(
		cm.reloads,
		cm.providers,
		cm.models,
	)

	return cm
}

// RecordReload counts a reload attempt.
func (cm *CatalogMetrics) RecordReload(outcome string) {
	cm.reloads.WithLabelValues(outcome).Inc()
}

// UpdateInfo sets the population gauges after a generation swap.
func (cm *CatalogMetrics) UpdateInfo(configured, enabled, models int) {
	cm.providers.WithLabelValues("configured").Set(float64(configured))
	cm.providers.WithLabelValues("enabled").Set(float64(enabled))
	cm.models.Set(float64(models))
}
