package catalog

import "sync/atomic"

// Handle publishes the current catalog generation. A request reads the
// pointer once and uses that generation throughout, so a reload landing
// mid-request never tears its view of providers or models.
type Handle struct {
	current atomic.Pointer[Catalog]
}

// NewHandle creates a handle over an initial generation.
func NewHandle(initial *Catalog) *Handle {
	h := &Handle{}
	h.current.Store(initial)
	return h
}

// Current returns the generation to pin for one request.
func (h *Handle) Current() *Catalog {
	return h.current.Load()
}

// Swap installs a new generation and returns the previous one.
func (h *Handle) Swap(next *Catalog) *Catalog {
	return h.current.Swap(next)
}

// Limits reports the declared per-minute limits from the current
// generation. Reading through the handle keeps quota enforcement on the
// freshest configuration across reloads.
func (h *Handle) Limits(providerID string) (rpm, tpm int) {
	cat := h.Current()
	if cat == nil {
		return 0, 0
	}
	return cat.Limits(providerID)
}
