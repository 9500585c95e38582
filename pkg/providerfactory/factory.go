// Package providerfactory constructs provider drivers from configuration.
//
// It lives outside pkg/providers so the driver packages can import the
// shared provider types without an import cycle, and outside the drivers so
// adding a kind means touching exactly one dispatch site.
package providerfactory

import (
	"fmt"
	"log/slog"

	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/providers/aihorde"
	"tycho-hq/meridian/pkg/providers/cloudflare"
	"tycho-hq/meridian/pkg/providers/cohere"
	"tycho-hq/meridian/pkg/providers/openaicompat"
	"tycho-hq/meridian/pkg/providers/pollinations"
)

// New creates the driver for one provider based on its kind.
//
// Supported kinds:
//   - "openai-compatible": any upstream speaking the OpenAI chat format
//     (Groq, OpenRouter, Mistral, vLLM, ...)
//   - "custom-auth": OpenAI format with credential placement quirks
//   - "cohere": Cohere v2 chat
//   - "cloudflare": Cloudflare Workers AI
//   - "pollinations": Pollinations text API
//   - "aihorde": AI Horde asynchronous generation
//
// An empty kind defaults to "openai-compatible", which covers the long tail
// of aggregators.
func New(cfg providers.DriverConfig) (providers.Driver, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = "openai-compatible"
		cfg.Kind = kind
	}

	slog.Debug("creating driver",
		"provider", cfg.ProviderID,
		"kind", kind,
	)

	var driver providers.Driver
	var err error

	switch kind {
	case "openai-compatible", "custom-auth":
		driver, err = openaicompat.New(cfg)

	case "cohere":
		driver, err = cohere.New(cfg)

	case "cloudflare":
		driver, err = cloudflare.New(cfg)

	case "pollinations":
		driver, err = pollinations.New(cfg)

	case "aihorde":
		driver, err = aihorde.New(cfg)

	default:
		return nil, &providers.ConfigError{
			Provider: cfg.ProviderID,
			Field:    "kind",
			Message:  fmt.Sprintf("unsupported driver kind %q", kind),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("create driver %q: %w", cfg.ProviderID, err)
	}
	return driver, nil
}
