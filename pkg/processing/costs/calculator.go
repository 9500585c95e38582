package costs

import (
	"tycho-hq/meridian/pkg/catalog"
	"tycho-hq/meridian/pkg/providers"
)

// Cost is a dollar amount for one request, split by phase. All amounts
// are USD. A free model prices to the zero value.
type Cost struct {
	// Prompt is the cost of the prompt tokens.
	Prompt float64

	// Completion is the cost of the completion tokens.
	Completion float64

	// Total is Prompt + Completion.
	Total float64
}

// ForTokens prices a request from token counts. Used before a call with
// estimated counts, and by ForUsage afterwards with real ones.
func ForTokens(p catalog.Pricing, promptTokens, completionTokens int) Cost {
	c := Cost{
		Prompt:     perThousand(promptTokens, p.Prompt),
		Completion: perThousand(completionTokens, p.Completion),
	}
	c.Total = c.Prompt + c.Completion
	return c
}

// ForUsage prices a completed request from provider-reported usage.
func ForUsage(p catalog.Pricing, usage providers.TokenUsage) Cost {
	return ForTokens(p, usage.PromptTokens, usage.CompletionTokens)
}

// Rate reduces a model's pricing to a single per-1K-token figure for
// ranking models against each other. Prompt and completion rates are
// summed rather than averaged; the relative order is what matters and
// free models must come out at exactly zero.
func Rate(p catalog.Pricing) float64 {
	return p.Prompt + p.Completion
}

func perThousand(tokens int, ratePer1K float64) float64 {
	if tokens <= 0 {
		return 0
	}
	return float64(tokens) / 1000.0 * ratePer1K
}
