package catalog

import "time"

// Capability identifies an optional model feature.
type Capability string

const (
	CapabilityStreaming        Capability = "streaming"
	CapabilityTools            Capability = "tools"
	CapabilityVision           Capability = "vision"
	CapabilityStructuredOutput Capability = "structured_output"
	CapabilityLogProbs         Capability = "log_probs"
)

// Capabilities records which optional features a model deployment supports.
type Capabilities struct {
	Streaming        bool
	Tools            bool
	Vision           bool
	StructuredOutput bool
	LogProbs         bool
}

// Has reports whether the given capability is present.
func (c Capabilities) Has(capability Capability) bool {
	switch capability {
	case CapabilityStreaming:
		return c.Streaming
	case CapabilityTools:
		return c.Tools
	case CapabilityVision:
		return c.Vision
	case CapabilityStructuredOutput:
		return c.StructuredOutput
	case CapabilityLogProbs:
		return c.LogProbs
	default:
		return false
	}
}

// merge returns the union of two capability sets.
func (c Capabilities) merge(other Capabilities) Capabilities {
	return Capabilities{
		Streaming:        c.Streaming || other.Streaming,
		Tools:            c.Tools || other.Tools,
		Vision:           c.Vision || other.Vision,
		StructuredOutput: c.StructuredOutput || other.StructuredOutput,
		LogProbs:         c.LogProbs || other.LogProbs,
	}
}

// Provider describes one configured upstream.
type Provider struct {
	// ID is the provider key from configuration (e.g., "groq").
	ID string

	// Name is the human-readable display name.
	Name string

	// Kind selects the driver implementation.
	Kind string

	// Endpoint is the base URL. Empty for kinds with a fixed endpoint.
	Endpoint string

	// Credential is the resolved secret. Indirections (env:NAME,
	// file:/path) are applied at catalog build time, so rotation requires
	// a new generation. Empty for keyless providers. Never log this.
	Credential string

	// Tier orders providers for fallback: lower is tried earlier.
	Tier int

	// Free marks providers with a no-cost tier.
	Free bool

	// Enabled reflects the configuration switch. Disabled providers stay
	// visible to Provider() lookups but are filtered from alias expansion.
	Enabled bool

	// RPMLimit and TPMLimit cap requests and tokens per minute.
	// Zero means unlimited.
	RPMLimit int
	TPMLimit int

	// Timeout bounds a single upstream exchange.
	Timeout time.Duration

	// NativeModels lists the provider's own model identifiers, as
	// configured. Informational; routing goes through canonical models.
	NativeModels []string

	// Quirks carries provider-specific settings the driver understands
	// (account ids, extra headers).
	Quirks map[string]string
}

// Pricing is the cost of a model in USD per 1K tokens. The zero value
// means free.
type Pricing struct {
	Prompt     float64
	Completion float64
}

// CanonicalModel is one routable model deployment: a model as served by a
// specific provider.
type CanonicalModel struct {
	// ID is the canonical identifier, by convention "provider/model"
	// (e.g., "groq/llama-3.3-70b").
	ID string

	// ProviderID names the owning provider.
	ProviderID string

	// ModelPath is the provider-native model identifier sent upstream.
	ModelPath string

	// ContextWindow is the maximum context size in tokens. Zero if
	// unknown.
	ContextWindow int

	Capabilities Capabilities
	Pricing      Pricing
}

// ModelInfo is one entry of the served model list: either an alias or a
// canonical model id.
type ModelInfo struct {
	ID string

	// OwnedBy is the owning provider id for canonical models, empty for
	// aliases.
	OwnedBy string

	// Alias is true for alias entries.
	Alias bool
}
