package routing

import (
	"sort"
	"sync"
	"time"
)

// defaultWindowSize bounds the per-provider observation ring when the
// configuration does not say otherwise.
const defaultWindowSize = 64

// observation is one completed provider attempt.
type observation struct {
	latency time.Duration
	success bool
}

// window is a fixed-size ring of the most recent observations for one
// provider. Old observations fall off as new ones arrive, so estimates
// track current behavior rather than lifetime averages.
type window struct {
	obs  []observation
	next int
	full bool
}

func (w *window) add(o observation) {
	w.obs[w.next] = o
	w.next = (w.next + 1) % len(w.obs)
	if w.next == 0 {
		w.full = true
	}
}

func (w *window) len() int {
	if w.full {
		return len(w.obs)
	}
	return w.next
}

// ProviderStats is a read-only view of one provider's recent behavior.
type ProviderStats struct {
	// P50 is the median latency of recent successful attempts.
	P50 time.Duration `json:"p50"`

	// FailureRate is the fraction of recent attempts that failed,
	// between 0 and 1.
	FailureRate float64 `json:"failure_rate"`

	// Samples is the number of observations the figures are based on.
	Samples int `json:"samples"`
}

// Stats tracks recent latency and outcome per provider over a bounded
// sample window. It feeds the router's latency and reliability score
// terms and the provider health endpoint.
type Stats struct {
	mu      sync.RWMutex
	size    int
	windows map[string]*window
}

// NewStats creates a Stats tracker keeping up to windowSize observations
// per provider. Non-positive sizes fall back to the default.
func NewStats(windowSize int) *Stats {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	return &Stats{
		size:    windowSize,
		windows: make(map[string]*window),
	}
}

// Observe records one completed attempt. Latency covers the full attempt
// for non-streaming calls and time to first byte for streaming ones.
func (s *Stats) Observe(providerID string, latency time.Duration, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[providerID]
	if !ok {
		w = &window{obs: make([]observation, s.size)}
		s.windows[providerID] = w
	}
	w.add(observation{latency: latency, success: success})
}

// P50 returns the median latency of recent successful attempts. A
// provider with no successful samples reports zero; failure latencies
// reflect timeout settings rather than provider speed, so they are
// excluded here and accounted for by FailureRate instead.
func (s *Stats) P50(providerID string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[providerID]
	if !ok {
		return 0
	}

	latencies := make([]time.Duration, 0, w.len())
	for i := 0; i < w.len(); i++ {
		if w.obs[i].success {
			latencies = append(latencies, w.obs[i].latency)
		}
	}
	if len(latencies) == 0 {
		return 0
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	mid := len(latencies) / 2
	if len(latencies)%2 == 0 {
		return (latencies[mid-1] + latencies[mid]) / 2
	}
	return latencies[mid]
}

// FailureRate returns the fraction of recent attempts that failed. A
// provider with no samples reports zero, which lets untried providers
// compete on cost and latency alone.
func (s *Stats) FailureRate(providerID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[providerID]
	if !ok || w.len() == 0 {
		return 0
	}

	failures := 0
	for i := 0; i < w.len(); i++ {
		if !w.obs[i].success {
			failures++
		}
	}
	return float64(failures) / float64(w.len())
}

// Snapshot returns per-provider stats for every provider observed so far.
func (s *Stats) Snapshot() map[string]ProviderStats {
	s.mu.RLock()
	ids := make([]string, 0, len(s.windows))
	for id := range s.windows {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	out := make(map[string]ProviderStats, len(ids))
	for _, id := range ids {
		out[id] = ProviderStats{
			P50:         s.P50(id),
			FailureRate: s.FailureRate(id),
			Samples:     s.samples(id),
		}
	}
	return out
}

func (s *Stats) samples(providerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w, ok := s.windows[providerID]; ok {
		return w.len()
	}
	return 0
}
