package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/store"
)

const (
	keyPrefix = "health:"
	entryTTL  = time.Hour
)

// HealthStore shares per-provider health across concurrent requests. State
// lives in the backing key-value store: with the memory backend it is
// process-local, with the sqlite backend it survives restarts and is
// visible to co-located replicas.
//
// All operations fail open. A request must never be rejected because the
// health store is unreachable; reads fall back to a healthy default and
// write errors are logged and swallowed.
type HealthStore struct {
	kv     store.Store
	logger *slog.Logger

	// now is replaceable in tests.
	now func() time.Time

	// locks serialize read-modify-write per provider. Different providers
	// update in parallel.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a health store backed by the given KV store.
func New(kv store.Store, logger *slog.Logger) *HealthStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthStore{
		kv:     kv,
		logger: logger.With("component", "health"),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// keyLock returns the mutex for one provider, creating it on first use.
func (h *HealthStore) keyLock(providerID string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()

	lock, ok := h.locks[providerID]
	if !ok {
		lock = &sync.Mutex{}
		h.locks[providerID] = lock
	}
	return lock
}

// Get returns the health entry for a provider. Providers without a record,
// and any read or decode failure, report as healthy.
func (h *HealthStore) Get(ctx context.Context, providerID string) Entry {
	data, err := h.kv.Get(ctx, keyPrefix+providerID)
	if err != nil {
		h.logger.Warn("health read failed, assuming healthy",
			"provider", providerID,
			"error", err,
		)
		return Entry{State: StateHealthy}
	}
	if data == nil {
		return Entry{State: StateHealthy}
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		h.logger.Warn("health entry corrupt, assuming healthy",
			"provider", providerID,
			"error", err,
		)
		return Entry{State: StateHealthy}
	}
	return entry
}

// RecordSuccess marks a provider healthy and clears failure state.
func (h *HealthStore) RecordSuccess(ctx context.Context, providerID string) {
	lock := h.keyLock(providerID)
	lock.Lock()
	defer lock.Unlock()

	h.put(ctx, providerID, Entry{
		State:     StateHealthy,
		UpdatedAt: h.now(),
	})
}

// RecordFailure applies one classified failure. rate_limited, auth_error,
// and server_error mark the provider unhealthy with their table cooldown,
// stretched to the retry-after hint when the upstream supplied a larger
// one. client_error and none leave the entry untouched: the request was at
// fault, not the provider.
func (h *HealthStore) RecordFailure(ctx context.Context, providerID string, class providers.ErrorClass, retryAfterHint time.Duration) {
	cooldown := cooldownFor(class)
	if cooldown == 0 {
		return
	}
	if retryAfterHint > cooldown {
		cooldown = retryAfterHint
	}

	lock := h.keyLock(providerID)
	lock.Lock()
	defer lock.Unlock()

	now := h.now()
	entry := h.Get(ctx, providerID)
	entry.State = StateUnhealthy
	entry.ConsecutiveFailures++
	entry.CooldownUntil = now.Add(cooldown)
	entry.LastErrorClass = class
	entry.UpdatedAt = now

	h.put(ctx, providerID, entry)

	h.logger.Info("provider marked unhealthy",
		"provider", providerID,
		"class", string(class),
		"cooldown", cooldown,
		"consecutive_failures", entry.ConsecutiveFailures,
	)
}

// IsEligible reports whether a provider may be attempted at the given
// instant.
func (h *HealthStore) IsEligible(ctx context.Context, providerID string, now time.Time) bool {
	return h.Get(ctx, providerID).Eligible(now)
}

// put writes an entry best-effort. Persistence failures are logged, never
// surfaced.
func (h *HealthStore) put(ctx context.Context, providerID string, entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		h.logger.Warn("health entry marshal failed", "provider", providerID, "error", err)
		return
	}
	if err := h.kv.Put(ctx, keyPrefix+providerID, data, entryTTL); err != nil {
		h.logger.Warn("health write failed", "provider", providerID, "error", err)
	}
}
