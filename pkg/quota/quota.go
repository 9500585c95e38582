package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/store"
)

const (
	keyPrefix = "quota:"

	// entryTTL keeps persisted window counters around a little past the
	// window itself so a restarted process can re-adopt them mid-minute.
	entryTTL = 2 * time.Minute
)

// LimitsSource supplies the declared per-minute limits for a provider.
// Zero means unlimited. *catalog.Handle satisfies it.
type LimitsSource interface {
	Limits(providerID string) (rpm, tpm int)
}

// Flagger receives token-overflow flags. *health.HealthStore satisfies it.
type Flagger interface {
	RecordFailure(ctx context.Context, providerID string, class providers.ErrorClass, retryAfterHint time.Duration)
}

// Entry is a point-in-time view of one provider's current window.
type Entry struct {
	WindowStart time.Time `json:"window_start"`
	Requests    int       `json:"requests"`
	Tokens      int64     `json:"tokens"`
	RPMLimit    int       `json:"rpm_limit"`
	TPMLimit    int       `json:"tpm_limit"`
}

// record is the persisted form. Field names stay short so a serialized
// window never approaches the 256-byte value cap.
type record struct {
	Requests int   `json:"r"`
	Tokens   int64 `json:"t"`
}

// window holds one provider's counters for the current minute-aligned
// window. Its mutex serializes reserve, commit, and rotation so the
// rotate-check-increment sequence is atomic.
type window struct {
	mu       sync.Mutex
	start    time.Time
	requests int
	tokens   int64
	flagged  bool
}

// Tracker enforces per-provider request budgets and observes token
// budgets over fixed 60-second windows aligned to wall-clock minutes.
//
// Request reservations are denied when the window is full. Token usage is
// only known after a response completes, so commits never block; a window
// that overruns its token budget instead flags the provider rate-limited
// through the Flagger, which keeps it out of routing for the next minute.
//
// Counters live in process memory and are written through to the backing
// store on every change, so a restart mid-minute resumes from the last
// persisted counts instead of a clean slate. The tracker stays permissive
// when the store is unreachable.
type Tracker struct {
	kv      store.Store
	limits  LimitsSource
	flagger Flagger
	logger  *slog.Logger

	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// New creates a Tracker. The flagger may be nil, in which case token
// overflows are logged but not reported anywhere.
func New(kv store.Store, limits LimitsSource, flagger Flagger, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		kv:      kv,
		limits:  limits,
		flagger: flagger,
		logger:  logger.With("component", "quota"),
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Reserve claims one request slot in the window containing now. It
// returns false only when the provider's declared RPM budget for that
// window is already spent; a provider with no declared limit, or a
// backing store that cannot be read, never causes a denial.
//
// Reservations are not refunded. A reserved slot that ends in a failed
// call still counts against the window.
func (t *Tracker) Reserve(ctx context.Context, providerID string, now time.Time) bool {
	rpm, _ := t.limits.Limits(providerID)

	w := t.window(providerID)
	w.mu.Lock()
	defer w.mu.Unlock()

	t.rotate(ctx, w, providerID, now)

	if rpm > 0 && w.requests >= rpm {
		t.logger.Debug("reservation denied",
			"provider", providerID,
			"requests", w.requests,
			"rpm_limit", rpm)
		return false
	}
	w.requests++
	t.persist(ctx, providerID, w)
	return true
}

// CommitTokens bills tokens against the provider's current window. It is
// called after a response completes, so it never blocks or denies; if the
// addition pushes the window past the declared TPM budget the provider is
// flagged rate-limited once per window.
func (t *Tracker) CommitTokens(ctx context.Context, providerID string, tokens int64) {
	if tokens <= 0 {
		return
	}
	_, tpm := t.limits.Limits(providerID)

	w := t.window(providerID)
	w.mu.Lock()
	defer w.mu.Unlock()

	t.rotate(ctx, w, providerID, t.now())

	w.tokens += tokens
	if tpm > 0 && w.tokens > int64(tpm) && !w.flagged {
		w.flagged = true
		t.logger.Info("token budget exceeded",
			"provider", providerID,
			"tokens", w.tokens,
			"tpm_limit", tpm)
		if t.flagger != nil {
			t.flagger.RecordFailure(ctx, providerID, providers.ErrorClassRateLimited, 0)
		}
	}
	t.persist(ctx, providerID, w)
}

// Snapshot reports the provider's current window. The window is rotated
// first, so counters from a lapsed minute never leak into the view.
func (t *Tracker) Snapshot(ctx context.Context, providerID string) Entry {
	rpm, tpm := t.limits.Limits(providerID)

	w := t.window(providerID)
	w.mu.Lock()
	defer w.mu.Unlock()

	t.rotate(ctx, w, providerID, t.now())

	return Entry{
		WindowStart: w.start,
		Requests:    w.requests,
		Tokens:      w.tokens,
		RPMLimit:    rpm,
		TPMLimit:    tpm,
	}
}

// window returns the per-provider window, creating it on first use.
func (t *Tracker) window(providerID string) *window {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.windows[providerID]
	if !ok {
		w = &window{}
		t.windows[providerID] = w
	}
	return w
}

// rotate moves w to the minute-aligned window containing now, seeding the
// fresh counters from the backing store so counts survive a restart.
// Callers hold w.mu.
func (t *Tracker) rotate(ctx context.Context, w *window, providerID string, now time.Time) {
	start := now.Truncate(time.Minute)
	if w.start.Equal(start) {
		return
	}
	w.start = start
	w.requests = 0
	w.tokens = 0
	w.flagged = false

	raw, err := t.kv.Get(ctx, t.key(providerID, start))
	if err != nil {
		t.logger.Warn("quota read failed",
			"provider", providerID,
			"error", err)
		return
	}
	if raw == nil {
		return
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.logger.Warn("quota entry corrupt",
			"provider", providerID,
			"error", err)
		return
	}
	w.requests = rec.Requests
	w.tokens = rec.Tokens
}

// persist writes w's counters through to the backing store. Failures are
// logged and otherwise ignored. Callers hold w.mu.
func (t *Tracker) persist(ctx context.Context, providerID string, w *window) {
	raw, err := json.Marshal(record{Requests: w.requests, Tokens: w.tokens})
	if err != nil {
		t.logger.Warn("quota entry marshal failed",
			"provider", providerID,
			"error", err)
		return
	}
	if err := t.kv.Put(ctx, t.key(providerID, w.start), raw, entryTTL); err != nil {
		t.logger.Warn("quota write failed",
			"provider", providerID,
			"error", err)
	}
}

// key builds the persistent key for one provider window. The suffix is
// the window start expressed in whole minutes since the Unix epoch.
func (t *Tracker) key(providerID string, start time.Time) string {
	return fmt.Sprintf("%s%s:%d", keyPrefix, providerID, start.Unix()/60)
}
