package health

import (
	"time"

	"tycho-hq/meridian/pkg/providers"
)

// State is a provider's health state.
type State string

const (
	StateHealthy   State = "healthy"
	StateUnhealthy State = "unhealthy"
)

// Entry is the per-provider health record. The zero-ish default (healthy,
// no failures, no cooldown) is what Get returns for providers that have
// never failed.
//
// Entries are persisted as compact JSON under "health:{provider_id}"; the
// serialized form stays small (well under 256 bytes) so any KV backend can
// hold it.
type Entry struct {
	State               State                `json:"state"`
	ConsecutiveFailures int                  `json:"consecutive_failures"`
	CooldownUntil       time.Time            `json:"cooldown_until,omitempty"`
	LastErrorClass      providers.ErrorClass `json:"last_error_class,omitempty"`
	UpdatedAt           time.Time            `json:"updated_at,omitempty"`
}

// Eligible reports whether a provider in this state may be attempted at
// the given instant: healthy, or past its cooldown. A provider whose
// cooldown has lapsed stays unhealthy until a success is recorded, but is
// eligible again so traffic can probe it.
func (e Entry) Eligible(now time.Time) bool {
	if e.State != StateUnhealthy {
		return true
	}
	return !e.CooldownUntil.After(now)
}

// CooldownRemaining returns how much cooldown is left at the given
// instant, or zero.
func (e Entry) CooldownRemaining(now time.Time) time.Duration {
	if e.CooldownUntil.IsZero() {
		return 0
	}
	remaining := e.CooldownUntil.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Cooldown ceilings per error class. Free-tier upstreams throttle
// aggressively, so rate limits back off a full minute while transient
// server errors retry sooner. Auth failures need operator action and park
// the provider for an hour.
const (
	cooldownRateLimited = 60 * time.Second
	cooldownAuth        = time.Hour
	cooldownServer      = 30 * time.Second
)

// cooldownFor maps an error class to its table cooldown. client_error and
// none carry no cooldown.
func cooldownFor(class providers.ErrorClass) time.Duration {
	switch class {
	case providers.ErrorClassRateLimited:
		return cooldownRateLimited
	case providers.ErrorClassAuth:
		return cooldownAuth
	case providers.ErrorClassServer:
		return cooldownServer
	default:
		return 0
	}
}
