package cloudflare

import (
	"encoding/json"
	"fmt"

	"tycho-hq/meridian/pkg/providers"
)

// Wire types for the Workers AI run endpoint.

// runRequest is the request body for POST .../ai/run/{model}. The model
// travels in the URL, not the body.
type runRequest struct {
	Messages    []runMessage `json:"messages"`
	Temperature float64      `json:"temperature,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	TopP        float64      `json:"top_p,omitempty"`
	Stream      bool         `json:"stream,omitempty"`
}

type runMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// envelope is Cloudflare's standard API wrapper.
type envelope struct {
	Result  json.RawMessage `json:"result"`
	Success bool            `json:"success"`
	Errors  []apiError      `json:"errors"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// runResult is the object form of a text generation result.
type runResult struct {
	Response string    `json:"response"`
	Usage    *runUsage `json:"usage,omitempty"`
}

type runUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// streamFragment is one SSE payload: a response fragment, with usage on the
// final one for models that report it.
type streamFragment struct {
	Response string    `json:"response"`
	Usage    *runUsage `json:"usage,omitempty"`
}

// transformRequest converts the canonical request to the Workers AI shape.
// Tool calling is not part of the run endpoint, so tools are dropped; the
// catalog advertises no tool capability for these models.
func transformRequest(req *providers.Request) *runRequest {
	out := &runRequest{
		Messages:    make([]runMessage, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
		Stream:      req.Stream,
	}
	for i, msg := range req.Messages {
		out.Messages[i] = runMessage{Role: msg.Role, Content: msg.Content}
	}
	return out
}

// decodeResult unpacks the result field, which is either a {response, usage}
// object or a bare string depending on the model.
func decodeResult(raw json.RawMessage, providerID string) (*runResult, error) {
	var result runResult
	if err := json.Unmarshal(raw, &result); err == nil {
		return &result, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return &runResult{Response: text}, nil
	}

	return nil, &providers.ParseError{
		Provider:    providerID,
		RawResponse: string(raw),
		Cause:       fmt.Errorf("unrecognized result shape"),
	}
}

// transformResponse converts a decoded envelope to the canonical shape.
func transformResponse(result *runResult, model string) *providers.Response {
	resp := &providers.Response{
		Model:        model,
		Content:      result.Response,
		FinishReason: providers.FinishReasonStop,
	}
	if result.Usage != nil {
		resp.Usage = toUsage(result.Usage)
	}
	return resp
}

func toUsage(usage *runUsage) providers.TokenUsage {
	total := usage.TotalTokens
	if total == 0 {
		total = usage.PromptTokens + usage.CompletionTokens
	}
	return providers.TokenUsage{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      total,
	}
}

// envelopeError turns a success:false envelope into a classified error.
// Cloudflare usually pairs these with a failing HTTP status, but a 200 with
// success:false still must not pass as a completion.
func envelopeError(env *envelope, providerID string) error {
	msg := "upstream reported failure"
	code := 0
	if len(env.Errors) > 0 {
		msg = env.Errors[0].Message
		code = env.Errors[0].Code
	}
	return &providers.ProviderError{
		Provider:   providerID,
		StatusCode: 502,
		Message:    fmt.Sprintf("workers ai error %d: %s", code, msg),
	}
}
