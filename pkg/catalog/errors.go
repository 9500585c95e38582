package catalog

import "fmt"

// UnknownModelError indicates a selector that matches neither an alias nor
// a canonical model id, or an alias whose expansion is empty.
type UnknownModelError struct {
	Selector string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.Selector)
}

// UnknownProviderError indicates a provider id absent from the catalog.
type UnknownProviderError struct {
	ID string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q", e.ID)
}
