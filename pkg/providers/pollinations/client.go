package pollinations

import (
	"log/slog"

	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/providers/openaicompat"
)

// DefaultEndpoint is the Pollinations OpenAI-compatible base.
const DefaultEndpoint = "https://text.pollinations.ai/openai"

// Driver serves the Pollinations text API by delegating to the
// OpenAI-compatible driver.
type Driver struct {
	providers.Driver
}

// New creates a Pollinations driver. No credential is required.
func New(cfg providers.DriverConfig) (providers.Driver, error) {
	if cfg.ProviderID == "" {
		return nil, &providers.ConfigError{
			Provider: "pollinations",
			Field:    "provider_id",
			Message:  "provider id is required",
		}
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	// The free tier rejects stream_options; leave room for a config
	// override should that change.
	if _, ok := cfg.Quirks["stream_options"]; !ok {
		quirks := make(map[string]string, len(cfg.Quirks)+1)
		for k, v := range cfg.Quirks {
			quirks[k] = v
		}
		quirks["stream_options"] = "off"
		cfg.Quirks = quirks
	}

	inner, err := openaicompat.New(cfg)
	if err != nil {
		return nil, err
	}

	slog.Debug("pollinations driver initialized",
		"provider", cfg.ProviderID,
		"endpoint", cfg.Endpoint,
		"keyless", cfg.Credential == "",
	)
	return &Driver{Driver: inner}, nil
}

// Kind returns the driver kind.
func (d *Driver) Kind() string {
	return "pollinations"
}
