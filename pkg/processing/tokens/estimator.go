package tokens

import (
	"encoding/json"
	"strings"

	"tycho-hq/meridian/pkg/config"
	"tycho-hq/meridian/pkg/providers"
)

// Formatting overheads, in tokens. Chat templates wrap every message in
// role markers and separators; these approximations match what the major
// OpenAI-compatible backends report for empty-ish payloads.
const (
	roleOverhead         = 1
	messageOverhead      = 3
	conversationOverhead = 3
	requestOverhead      = 5
	toolOverhead         = 10
	toolCallIDOverhead   = 10
	toolCallOverhead     = 5
)

// Completion estimate bounds when the request carries no max_tokens.
const (
	minCompletionEstimate = 100
	maxCompletionEstimate = 1000
)

// defaultCharsPerToken is the ultimate fallback ratio when the
// configuration supplies nothing.
const defaultCharsPerToken = 4.0

// Estimate contains the token estimation results for one request.
type Estimate struct {
	// PromptTokens is the estimated number of tokens in the prompt,
	// including all overheads.
	PromptTokens int

	// CompletionTokens is the estimated completion size. MaxTokens wins
	// when the request sets it; otherwise a bounded fraction of the
	// prompt is assumed.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens. This is the number
	// reserved against a provider's token budget.
	TotalTokens int

	// SystemPromptTokens / MessageTokens / ToolTokens break the prompt
	// down by origin.
	SystemPromptTokens int
	MessageTokens      int
	ToolTokens         int

	// OverheadTokens covers request framing beyond individual messages.
	OverheadTokens int

	// Model is the selector the estimate was computed for.
	Model string
}

// Estimator estimates token counts from character counts using
// model-specific characters-per-token ratios. It stays within a few
// percent of real tokenizers for ordinary prose and costs microseconds,
// which is all the budget accounting needs.
type Estimator struct {
	cfg config.EstimatorConfig
}

// NewEstimator creates an estimator from configuration. A zero config is
// usable and falls back to the default ratio for every model.
func NewEstimator(cfg config.EstimatorConfig) *Estimator {
	return &Estimator{cfg: cfg}
}

// Text estimates tokens for a single string. Non-empty text counts as at
// least one token.
func (e *Estimator) Text(text, model string) int {
	if text == "" {
		return 0
	}
	tokens := float64(len(text)) / e.charsPerToken(model)
	if tokens < 1.0 {
		return 1
	}
	return int(tokens + 0.5)
}

// Messages estimates prompt tokens for a conversation, including role and
// message framing overhead.
func (e *Estimator) Messages(messages []providers.Message, model string) int {
	if len(messages) == 0 {
		return 0
	}
	total := 0
	for _, msg := range messages {
		total += e.message(msg, model)
	}
	return total + conversationOverhead
}

// Tools estimates tokens for tool definitions. Schemas are measured in
// their serialized form since that is roughly what providers inject into
// the prompt.
func (e *Estimator) Tools(tools []providers.Tool, model string) int {
	if len(tools) == 0 {
		return 0
	}
	total := 0
	for _, tool := range tools {
		total += e.Text(tool.Function.Name, model)
		total += e.Text(tool.Function.Description, model)
		if tool.Function.Parameters != nil {
			if raw, err := json.Marshal(tool.Function.Parameters); err == nil {
				total += e.Text(string(raw), model)
			}
		}
		total += toolOverhead
	}
	return total
}

// Request estimates all tokens for a complete request.
func (e *Estimator) Request(req *providers.Request) Estimate {
	est := Estimate{Model: req.Model}

	for _, msg := range req.Messages {
		n := e.message(msg, req.Model)
		if msg.Role == providers.RoleSystem {
			est.SystemPromptTokens += n
		} else {
			est.MessageTokens += n
		}
	}
	est.ToolTokens = e.Tools(req.Tools, req.Model)
	est.OverheadTokens = requestOverhead
	if len(req.Messages) > 0 {
		est.OverheadTokens += conversationOverhead
	}

	est.PromptTokens = est.SystemPromptTokens + est.MessageTokens +
		est.ToolTokens + est.OverheadTokens

	if req.MaxTokens > 0 {
		est.CompletionTokens = req.MaxTokens
	} else {
		// Completions for ordinary chat run well short of their prompts.
		est.CompletionTokens = est.PromptTokens / 3
		if est.CompletionTokens < minCompletionEstimate {
			est.CompletionTokens = minCompletionEstimate
		}
		if est.CompletionTokens > maxCompletionEstimate {
			est.CompletionTokens = maxCompletionEstimate
		}
	}

	est.TotalTokens = est.PromptTokens + est.CompletionTokens
	return est
}

// message estimates one message including its framing overhead.
func (e *Estimator) message(msg providers.Message, model string) int {
	total := roleOverhead
	total += e.Text(msg.Content, model)
	total += e.Text(msg.Name, model)
	for _, tc := range msg.ToolCalls {
		total += toolCallIDOverhead
		total += e.Text(tc.Function.Name, model)
		total += e.Text(tc.Function.Arguments, model)
		total += toolCallOverhead
	}
	return total + messageOverhead
}

// charsPerToken resolves the ratio for a model: exact match, then longest
// matching prefix, then the configured default, then the built-in one.
// Longest prefix wins so "llama-3" and "llama-3.3-70b" overrides coexist
// predictably.
func (e *Estimator) charsPerToken(model string) float64 {
	if ratio, ok := e.cfg.Models[model]; ok && ratio > 0 {
		return ratio
	}

	bestLen := -1
	bestRatio := 0.0
	for pattern, ratio := range e.cfg.Models {
		if ratio > 0 && strings.HasPrefix(model, pattern) && len(pattern) > bestLen {
			bestLen = len(pattern)
			bestRatio = ratio
		}
	}
	if bestLen >= 0 {
		return bestRatio
	}

	if e.cfg.CharsPerToken > 0 {
		return e.cfg.CharsPerToken
	}
	return defaultCharsPerToken
}
