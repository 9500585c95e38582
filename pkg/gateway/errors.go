package gateway

import (
	"fmt"

	"tycho-hq/meridian/pkg/catalog"
)

// CapabilityError reports a request shape that no model behind the
// requested selector can serve, regardless of health or quota.
type CapabilityError struct {
	Selector   string
	Capability catalog.Capability
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("no model behind %q supports %s", e.Selector, e.Capability)
}
