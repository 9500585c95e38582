package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tycho-hq/meridian/pkg/catalog"
	"tycho-hq/meridian/pkg/config"
	"tycho-hq/meridian/pkg/health"
	"tycho-hq/meridian/pkg/quota"
)

type stubHealths map[string]health.Entry

func (s stubHealths) Get(_ context.Context, providerID string) health.Entry {
	if entry, ok := s[providerID]; ok {
		return entry
	}
	// Missing entry means healthy, matching the real store.
	return health.Entry{State: health.StateHealthy}
}

type stubQuotas map[string]quota.Entry

func (s stubQuotas) Snapshot(_ context.Context, providerID string) quota.Entry {
	return s[providerID]
}

func TestHealthHandler(t *testing.T) {
	handler := NewHealthHandler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	handler := NewHealthHandler()

	req := httptest.NewRequest(http.MethodDelete, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestReadyHandler(t *testing.T) {
	handler := NewReadyHandler(testCatalogHandle(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["status"] != "ready" {
		t.Errorf("status field = %v, want ready", body["status"])
	}
}

func TestReadyHandler_NoCatalog(t *testing.T) {
	handler := NewReadyHandler(catalog.NewHandle(nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 before a catalog is loaded", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["status"] != "not_ready" {
		t.Errorf("status field = %v, want not_ready", body["status"])
	}
}

func TestReadyHandler_AllProvidersDisabled(t *testing.T) {
	disabled := false
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"solo": {Kind: "openai-compatible", Enabled: &disabled},
		},
	}
	cat, err := catalog.New(cfg)
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	handler := NewReadyHandler(catalog.NewHandle(cat), nil)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 with every provider disabled", w.Code)
	}
}

func TestProviderHealthHandler(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	healths := stubHealths{
		"groq": {
			State:               health.StateUnhealthy,
			ConsecutiveFailures: 2,
			CooldownUntil:       now.Add(45 * time.Second),
			LastErrorClass:      "rate_limited",
		},
	}
	quotas := stubQuotas{
		"groq": {Requests: 28, Tokens: 5400, RPMLimit: 30, TPMLimit: 6000},
	}
	handler := NewProviderHealthHandler(testCatalogHandle(t), healths, quotas, func() time.Time { return now })

	req := httptest.NewRequest(http.MethodGet, "/health/providers", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Providers map[string]providerReport `json:"providers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}

	groq, ok := body.Providers["groq"]
	if !ok {
		t.Fatalf("groq missing from report: %v", body.Providers)
	}
	if groq.State != "unhealthy" {
		t.Errorf("State = %q, want unhealthy", groq.State)
	}
	if groq.ConsecutiveFailures != 2 {
		t.Errorf("ConsecutiveFailures = %d, want 2", groq.ConsecutiveFailures)
	}
	if groq.CooldownSeconds != 45 {
		t.Errorf("CooldownSeconds = %v, want 45", groq.CooldownSeconds)
	}
	if groq.LastErrorClass != "rate_limited" {
		t.Errorf("LastErrorClass = %q, want rate_limited", groq.LastErrorClass)
	}
	if groq.RequestsThisMinute != 28 {
		t.Errorf("RequestsThisMinute = %d, want 28", groq.RequestsThisMinute)
	}
	if groq.TokensThisMinute != 5400 {
		t.Errorf("TokensThisMinute = %d, want 5400", groq.TokensThisMinute)
	}

	// Disabled providers are listed, distinguishable from absent ones.
	legacy, ok := body.Providers["legacy"]
	if !ok {
		t.Fatalf("legacy missing from report: %v", body.Providers)
	}
	if legacy.Enabled {
		t.Error("legacy reported enabled")
	}
	if legacy.State != "healthy" {
		t.Errorf("legacy State = %q, want healthy for a never-failed provider", legacy.State)
	}
}
