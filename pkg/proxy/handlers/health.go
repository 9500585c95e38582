package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"tycho-hq/meridian/pkg/health"
)

// HealthHandler answers liveness probes. It reports ok whenever the
// process is serving; readiness is ReadyHandler's job.
type HealthHandler struct{}

// NewHealthHandler creates a liveness handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements http.Handler for liveness checks.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeHealthJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// ReadyHandler answers readiness probes. The gateway is ready once a
// model catalog has been loaded and it names at least one enabled
// provider; before that, routing every request would fail.
type ReadyHandler struct {
	catalogs CatalogSource
	now      Clock
}

// NewReadyHandler creates a readiness handler over the given catalog.
func NewReadyHandler(catalogs CatalogSource, now Clock) *ReadyHandler {
	if now == nil {
		now = time.Now
	}
	return &ReadyHandler{catalogs: catalogs, now: now}
}

// ServeHTTP implements http.Handler for readiness checks.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	enabled := 0
	models := 0
	if cat := h.catalogs.Current(); cat != nil {
		for _, p := range cat.Providers() {
			if p.Enabled {
				enabled++
			}
		}
		models = len(cat.Models())
	}

	status := "ready"
	statusCode := http.StatusOK
	if enabled == 0 {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeHealthJSON(w, statusCode, map[string]interface{}{
		"status": status,
		"providers": map[string]interface{}{
			"enabled": enabled,
		},
		"models":    models,
		"timestamp": h.now().Unix(),
	})
}

// providerReport is one provider's row in the detailed health listing.
type providerReport struct {
	State               string  `json:"state"`
	Enabled             bool    `json:"enabled"`
	Tier                int     `json:"tier"`
	Free                bool    `json:"free,omitempty"`
	ConsecutiveFailures int     `json:"consecutive_failures,omitempty"`
	CooldownSeconds     float64 `json:"cooldown_seconds,omitempty"`
	LastErrorClass      string  `json:"last_error_class,omitempty"`
	RequestsThisMinute  int     `json:"requests_this_minute"`
	TokensThisMinute    int64   `json:"tokens_this_minute"`
	RPMLimit            int     `json:"rpm_limit,omitempty"`
	TPMLimit            int     `json:"tpm_limit,omitempty"`
}

// ProviderHealthHandler reports per-provider health and budget state for
// operators. Disabled providers are listed too so a missing provider is
// distinguishable from a switched-off one.
type ProviderHealthHandler struct {
	catalogs CatalogSource
	healths  HealthSource
	quotas   QuotaSource
	now      Clock
}

// NewProviderHealthHandler creates a detailed provider health handler.
func NewProviderHealthHandler(catalogs CatalogSource, healths HealthSource, quotas QuotaSource, now Clock) *ProviderHealthHandler {
	if now == nil {
		now = time.Now
	}
	return &ProviderHealthHandler{catalogs: catalogs, healths: healths, quotas: quotas, now: now}
}

// ServeHTTP implements http.Handler for detailed provider health.
func (h *ProviderHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := h.now()
	reports := make(map[string]providerReport)
	if cat := h.catalogs.Current(); cat != nil {
		for _, p := range cat.Providers() {
			entry := h.healths.Get(r.Context(), p.ID)
			budget := h.quotas.Snapshot(r.Context(), p.ID)

			report := providerReport{
				State:              string(entry.State),
				Enabled:            p.Enabled,
				Tier:               p.Tier,
				Free:               p.Free,
				RequestsThisMinute: budget.Requests,
				TokensThisMinute:   budget.Tokens,
				RPMLimit:           budget.RPMLimit,
				TPMLimit:           budget.TPMLimit,
			}
			if entry.State == health.StateUnhealthy {
				report.ConsecutiveFailures = entry.ConsecutiveFailures
				report.CooldownSeconds = entry.CooldownRemaining(now).Seconds()
				report.LastErrorClass = string(entry.LastErrorClass)
			}
			reports[p.ID] = report
		}
	}

	writeHealthJSON(w, http.StatusOK, map[string]interface{}{
		"providers": reports,
		"timestamp": now.Unix(),
	})
}

func writeHealthJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
