package providerfactory

import (
	"fmt"
	"sync/atomic"

	"tycho-hq/meridian/pkg/providers"
)

// Handle publishes the current driver registry. A reload builds a complete
// replacement registry and swaps it in; attempts resolve drivers through
// the handle, so an attempt that starts after the swap uses the new
// generation while streams already running keep their old driver. Closing
// the previous registry only drops idle connections, so those streams are
// not disturbed.
type Handle struct {
	current atomic.Pointer[providers.Registry]
}

// NewHandle creates a handle over an initial registry.
func NewHandle(initial *providers.Registry) *Handle {
	h := &Handle{}
	h.current.Store(initial)
	return h
}

// Current returns the active registry.
func (h *Handle) Current() *providers.Registry {
	return h.current.Load()
}

// Driver resolves a provider's driver from the active registry.
func (h *Handle) Driver(providerID string) (providers.Driver, error) {
	reg := h.current.Load()
	if reg == nil {
		return nil, fmt.Errorf("no driver registry installed")
	}
	return reg.Driver(providerID)
}

// Swap installs a new registry and returns the previous one so the caller
// can close its drivers.
func (h *Handle) Swap(next *providers.Registry) *providers.Registry {
	return h.current.Swap(next)
}
