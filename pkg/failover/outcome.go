package failover

import (
	"fmt"
	"time"

	"tycho-hq/meridian/pkg/catalog"
	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/routing"
)

// Outcome is the classified result of a single attempt against one candidate.
// Exactly one of Response or Stream is set on success; Err carries the failure
// otherwise. Cancelled outcomes mean the caller went away mid-attempt and must
// not be charged against the provider.
type Outcome struct {
	Provider   string
	Model      *catalog.CanonicalModel
	Tier       routing.Tier
	Response   *providers.Response
	Stream     <-chan *providers.Chunk
	Err        error
	Class      providers.ErrorClass
	RetryAfter time.Duration
	Latency    time.Duration
	Cancelled  bool
}

// Success reports whether the attempt produced a usable response or stream.
func (o Outcome) Success() bool {
	return o.Err == nil && !o.Cancelled
}

// Attempt summarizes one failed attempt for error reporting.
type Attempt struct {
	Provider string               `json:"provider"`
	Model    string               `json:"model"`
	Tier     string               `json:"tier"`
	Class    providers.ErrorClass `json:"error"`
}

// ExhaustedError is returned when every candidate in every tier has been
// tried (or none existed) and no attempt succeeded.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "no eligible providers for request"
	}
	return fmt.Sprintf("all providers exhausted after %d attempts", len(e.Attempts))
}

// AllRateLimited reports whether every attempt failed with a rate limit.
// Used by callers to surface an upstream 429 instead of a generic failure.
func (e *ExhaustedError) AllRateLimited() bool {
	return e.allClass(providers.ErrorClassRateLimited)
}

// AllClientErrors reports whether every attempt was rejected as malformed.
func (e *ExhaustedError) AllClientErrors() bool {
	return e.allClass(providers.ErrorClassClient)
}

func (e *ExhaustedError) allClass(class providers.ErrorClass) bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if a.Class != class {
			return false
		}
	}
	return true
}
