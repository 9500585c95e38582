package metrics

import (
	"time"

	"tycho-hq/meridian/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// defaultTTFBBuckets spans the interesting range for first-token latency.
// The upper bound matches the streaming first-byte timeout.
var defaultTTFBBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

// RequestMetrics tracks the request serving path.
//
// Metrics:
//   - meridian_requests_total: completed requests by provider, model, outcome
//   - meridian_request_duration_seconds: end-to-end request latency
//   - meridian_request_ttfb_seconds: streaming time to first token
//   - meridian_request_tokens_total: reported usage by token type
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ttfb            *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics with the provided
// registry.
func NewRequestMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "requests_total",
				Help:      "Completed chat completion requests",
			},
			[]string{"provider", "model", "outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_duration_seconds",
				Help:      "End-to-end request duration in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"provider", "model"},
		),

		ttfb: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_ttfb_seconds",
				Help:      "Time to first streamed token in seconds",
				Buckets:   defaultTTFBBuckets,
			},
			[]string{"provider", "model"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "request_tokens_total",
				Help:      "Tokens reported by upstream providers",
			},
			[]string{"provider", "model", "type"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.ttfb,
		rm.tokensTotal,
	)

	return rm
}

// RecordRequest records a completed request.
func (rm *RequestMetrics) RecordRequest(provider, model, outcome string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(provider, model, outcome).Inc()
	rm.requestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordTokens records usage split by token type. Zero counts are skipped
// so providers that report no usage do not mint empty series.
func (rm *RequestMetrics) RecordTokens(provider, model string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		rm.tokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		rm.tokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordTTFB records time to first streamed token.
func (rm *RequestMetrics) RecordTTFB(provider, model string, ttfb time.Duration) {
	rm.ttfb.WithLabelValues(provider, model).Observe(ttfb.Seconds())
}
