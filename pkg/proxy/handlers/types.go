package handlers

import (
	"context"
	"time"

	"tycho-hq/meridian/pkg/catalog"
	"tycho-hq/meridian/pkg/gateway"
	"tycho-hq/meridian/pkg/health"
	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/quota"
)

// Frontend runs one canonical request to completion.
// *gateway.Frontend satisfies it.
type Frontend interface {
	Run(ctx context.Context, req *providers.Request) (*gateway.Result, error)
}

// CatalogSource yields the current configuration generation.
// *catalog.Handle satisfies it.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// HealthSource reads provider health state. *health.HealthStore satisfies it.
type HealthSource interface {
	Get(ctx context.Context, providerID string) health.Entry
}

// QuotaSource reads provider budget state. *quota.Tracker satisfies it.
type QuotaSource interface {
	Snapshot(ctx context.Context, providerID string) quota.Entry
}

// Recorder receives request telemetry. *metrics.Collector satisfies it.
type Recorder interface {
	RecordRequest(provider, model, outcome string, duration time.Duration)
	RecordTokens(provider, model string, promptTokens, completionTokens int)
	RecordTTFB(provider, model string, ttfb time.Duration)
	RecordAttempts(model string, attempts int)
	RecordTierSelected(tier string)
}

// noopRecorder stands in when no collector is wired.
type noopRecorder struct{}

func (noopRecorder) RecordRequest(provider, model, outcome string, duration time.Duration)   {}
func (noopRecorder) RecordTokens(provider, model string, promptTokens, completionTokens int) {}
func (noopRecorder) RecordTTFB(provider, model string, ttfb time.Duration)                   {}
func (noopRecorder) RecordAttempts(model string, attempts int)                               {}
func (noopRecorder) RecordTierSelected(tier string)                                          {}

// Clock lets tests pin the time used in health reporting.
type Clock func() time.Time
