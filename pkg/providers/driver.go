package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Driver is the uniform surface over one upstream LLM endpoint.
//
// Both calls receive a request whose Model field already holds the
// provider-native model path. Errors returned from either call map into the
// ErrorClass taxonomy via Classify; drivers should return the typed errors
// from this package so classification is exact.
//
// Stream returns a finite chunk sequence: zero or more content chunks, then
// a terminal chunk carrying Usage, then channel close. The sequence is not
// restartable. Cancelling ctx stops the stream; the driver closes the
// channel after at most one further chunk.
type Driver interface {
	// Name returns the provider id this driver serves.
	Name() string

	// Kind returns the driver kind (openai-compatible, cohere, ...).
	Kind() string

	// Complete performs a non-streaming completion.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Stream performs a streaming completion.
	Stream(ctx context.Context, req *Request) (<-chan *Chunk, error)

	// Close releases driver resources (idle connections, pollers).
	Close() error
}

// DriverConfig carries everything a driver constructor needs for one
// provider. It is assembled from the catalog configuration; Quirks holds
// provider-specific settings (account ids, extra headers) that only the
// driver for that kind understands.
type DriverConfig struct {
	// ProviderID is the provider identifier the driver serves
	ProviderID string

	// Kind selects the driver implementation
	Kind string

	// Endpoint is the base URL (kind-specific default applies when empty)
	Endpoint string

	// Credential is the resolved API key or token (may be empty for
	// keyless providers)
	Credential string

	// Timeout bounds a single non-streaming HTTP exchange
	Timeout time.Duration

	// ResponseHeaderTimeout bounds the wait for response headers; it is
	// the knob that matters for streaming calls, where the body stays
	// open long past any overall timeout
	ResponseHeaderTimeout time.Duration

	// MaxIdleConns / MaxIdleConnsPerHost / IdleConnTimeout tune the
	// pooled transport
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// Quirks is opaque kind-specific configuration
	Quirks map[string]string
}

// Factory constructs a Driver for one provider.
type Factory func(cfg DriverConfig) (Driver, error)

// Registry holds the constructed driver per provider id. It is populated at
// startup from the catalog and is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry creates an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[string]Driver),
	}
}

// Register adds a driver for a provider id, replacing and closing any
// previous one.
func (r *Registry) Register(d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.drivers[d.Name()]; ok {
		slog.Warn("replacing existing driver", "provider", d.Name())
		existing.Close()
	}
	r.drivers[d.Name()] = d
}

// Driver returns the driver for a provider id.
func (r *Registry) Driver(providerID string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.drivers[providerID]
	if !ok {
		return nil, fmt.Errorf("no driver registered for provider %q", providerID)
	}
	return d, nil
}

// Names returns the registered provider ids.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	return names
}

// Close closes all registered drivers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, d := range r.drivers {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing driver %q: %w", name, err)
		}
	}
	r.drivers = make(map[string]Driver)
	return firstErr
}
