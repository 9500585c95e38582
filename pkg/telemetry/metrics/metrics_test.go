package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tycho-hq/meridian/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() config.MetricsConfig {
	enabled := true
	return config.MetricsConfig{
		Enabled:                &enabled,
		Namespace:              "test",
		RequestDurationBuckets: []float64{0.1, 0.5, 1.0, 5.0},
	}
}

func TestNewCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(testConfig(), registry)

	if collector == nil {
		t.Fatal("NewCollector() returned nil")
	}
	if collector.Registry() != registry {
		t.Error("Registry() does not return the provided registry")
	}
	if !collector.Enabled() {
		t.Error("Enabled() = false, want true")
	}
}

func TestNewCollector_NilRegistry(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	if collector.Registry() == nil {
		t.Fatal("Registry() = nil, want fresh registry")
	}
}

func TestNewCollector_EnabledDefaultsTrue(t *testing.T) {
	collector := NewCollector(config.MetricsConfig{Namespace: "test"}, nil)
	if !collector.Enabled() {
		t.Error("Enabled() = false with unset config, want true")
	}
}

func TestCollector_RecordRequest(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	tests := []struct {
		name     string
		provider string
		model    string
		outcome  string
		duration time.Duration
	}{
		{
			name:     "success",
			provider: "groq",
			model:    "llama-3.1-8b",
			outcome:  "success",
			duration: 850 * time.Millisecond,
		},
		{
			name:     "error",
			provider: "cohere",
			model:    "command-r",
			outcome:  "error",
			duration: 120 * time.Millisecond,
		},
		{
			name:     "rejected before dispatch",
			provider: "none",
			model:    "unknown-model",
			outcome:  "rejected",
			duration: time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector.RecordRequest(tt.provider, tt.model, tt.outcome, tt.duration)

			count := testutil.ToFloat64(collector.requestMetrics.requestsTotal.WithLabelValues(tt.provider, tt.model, tt.outcome))
			if count != 1 {
				t.Errorf("requests_total = %f, want 1", count)
			}
		})
	}
}

func TestCollector_RecordTokens(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordTokens("groq", "llama-3.1-8b", 412, 96)
	collector.RecordTokens("groq", "llama-3.1-8b", 100, 0)

	prompt := testutil.ToFloat64(collector.requestMetrics.tokensTotal.WithLabelValues("groq", "llama-3.1-8b", "prompt"))
	if prompt != 512 {
		t.Errorf("prompt tokens = %f, want 512", prompt)
	}
	completion := testutil.ToFloat64(collector.requestMetrics.tokensTotal.WithLabelValues("groq", "llama-3.1-8b", "completion"))
	if completion != 96 {
		t.Errorf("completion tokens = %f, want 96", completion)
	}
}

func TestCollector_ProviderHealth(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.UpdateProviderHealth("groq", true)
	if got := testutil.ToFloat64(collector.providerMetrics.available.WithLabelValues("groq")); got != 1 {
		t.Errorf("provider_available = %f, want 1", got)
	}

	collector.UpdateProviderHealth("groq", false)
	if got := testutil.ToFloat64(collector.providerMetrics.available.WithLabelValues("groq")); got != 0 {
		t.Errorf("provider_available = %f, want 0", got)
	}
}

func TestCollector_ProviderErrors(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordProviderError("cohere", "rate_limited")
	collector.RecordProviderError("cohere", "rate_limited")
	collector.RecordCooldown("cohere", "rate_limited")

	errs := testutil.ToFloat64(collector.providerMetrics.errors.WithLabelValues("cohere", "rate_limited"))
	if errs != 2 {
		t.Errorf("provider_errors_total = %f, want 2", errs)
	}
	cooldowns := testutil.ToFloat64(collector.providerMetrics.cooldowns.WithLabelValues("cohere", "rate_limited"))
	if cooldowns != 1 {
		t.Errorf("provider_cooldowns_total = %f, want 1", cooldowns)
	}
}

func TestCollector_TierSelections(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordTierSelected("preferred")
	collector.RecordTierSelected("preferred")
	collector.RecordTierSelected("emergency")
	collector.RecordAttempts("llama-3.1-8b", 3)

	preferred := testutil.ToFloat64(collector.routingMetrics.tierSelections.WithLabelValues("preferred"))
	if preferred != 2 {
		t.Errorf("tier_selections_total{preferred} = %f, want 2", preferred)
	}
}

func TestCollector_Quota(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.UpdateQuotaUsage("horde", 28, 30)
	collector.RecordQuotaExhausted("horde")

	used := testutil.ToFloat64(collector.quotaMetrics.windowUsed.WithLabelValues("horde"))
	if used != 28 {
		t.Errorf("quota_window_requests = %f, want 28", used)
	}
	limit := testutil.ToFloat64(collector.quotaMetrics.windowLimit.WithLabelValues("horde"))
	if limit != 30 {
		t.Errorf("quota_window_limit = %f, want 30", limit)
	}
	exhausted := testutil.ToFloat64(collector.quotaMetrics.exhausted.WithLabelValues("horde"))
	if exhausted != 1 {
		t.Errorf("quota_exhausted_total = %f, want 1", exhausted)
	}
}

func TestCollector_Catalog(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordCatalogReload("applied")
	collector.RecordCatalogReload("rejected")
	collector.UpdateCatalogInfo(5, 4, 12)

	applied := testutil.ToFloat64(collector.catalogMetrics.reloads.WithLabelValues("applied"))
	if applied != 1 {
		t.Errorf("catalog_reloads_total{applied} = %f, want 1", applied)
	}
	enabled := testutil.ToFloat64(collector.catalogMetrics.providers.WithLabelValues("enabled"))
	if enabled != 4 {
		t.Errorf("catalog_providers{enabled} = %f, want 4", enabled)
	}
	models := testutil.ToFloat64(collector.catalogMetrics.models)
	if models != 12 {
		t.Errorf("catalog_models = %f, want 12", models)
	}
}

func TestCollector_Disabled(t *testing.T) {
	enabled := false
	cfg := testConfig()
	cfg.Enabled = &enabled
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordRequest("groq", "llama-3.1-8b", "success", time.Second)
	collector.RecordProviderError("groq", "server_error")

	count := testutil.ToFloat64(collector.requestMetrics.requestsTotal.WithLabelValues("groq", "llama-3.1-8b", "success"))
	if count != 0 {
		t.Errorf("requests_total = %f with metrics disabled, want 0", count)
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.RecordRequest("groq", "llama-3.1-8b", "success", time.Second)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("GET /metrics status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_requests_total") {
		t.Errorf("exposition output missing test_requests_total:\n%s", rec.Body.String())
	}
}

func TestCardinalityLimiter(t *testing.T) {
	limiter := NewCardinalityLimiter(2)

	if !limiter.Allow("a") {
		t.Error("Allow(a) = false, want true")
	}
	if !limiter.Allow("b") {
		t.Error("Allow(b) = false, want true")
	}
	if limiter.Allow("c") {
		t.Error("Allow(c) = true past the cap, want false")
	}
	if !limiter.Allow("a") {
		t.Error("Allow(a) repeat = false, want true")
	}
	if got := limiter.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
}

func TestCollector_CardinalityOverflow(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.cardinalityLimiter = NewCardinalityLimiter(1)

	collector.RecordRequest("groq", "llama-3.1-8b", "success", time.Second)
	collector.RecordRequest("groq", "mixtral-8x7b", "success", time.Second)

	other := testutil.ToFloat64(collector.requestMetrics.requestsTotal.WithLabelValues("groq", "other", "success"))
	if other != 1 {
		t.Errorf("overflow series = %f, want 1", other)
	}
}
