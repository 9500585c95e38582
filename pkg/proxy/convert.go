package proxy

import (
	"strings"

	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/proxy/types"
)

// ToCanonicalRequest converts a wire request into the canonical form the
// gateway routes. Multimodal content arrays are flattened to their text
// parts; non-text parts are dropped because no routed model takes image
// input through this gateway.
func ToCanonicalRequest(req *types.ChatCompletionRequest) *providers.Request {
	out := &providers.Request{
		Model:             req.Model,
		Messages:          make([]providers.Message, 0, len(req.Messages)),
		Stream:            req.Stream,
		Stop:              req.Stop,
		User:              req.User,
		ToolChoice:        req.ToolChoice,
		ResponseFormat:    req.ResponseFormat,
		LogProbs:          req.LogProbs,
		PreferredProvider: req.PreferredProvider,
	}

	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if req.TopP != nil {
		out.TopP = *req.TopP
	}

	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, providers.Message{
			Role:       msg.Role,
			Content:    FlattenContent(msg.Content),
			Name:       msg.Name,
			ToolCalls:  toCanonicalToolCalls(msg.ToolCalls),
			ToolCallID: msg.ToolCallID,
		})
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]providers.Tool, 0, len(req.Tools))
		for _, tool := range req.Tools {
			out.Tools = append(out.Tools, providers.Tool{
				Type: tool.Type,
				Function: providers.FunctionDefinition{
					Name:        tool.Function.Name,
					Description: tool.Function.Description,
					Parameters:  tool.Function.Parameters,
				},
			})
		}
	}

	return out
}

// FlattenContent reduces the string-or-parts content union to plain text.
// Text parts are concatenated in order; anything else is dropped.
func FlattenContent(content interface{}) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []interface{}:
		var b strings.Builder
		for _, raw := range v {
			part, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if t, _ := part["type"].(string); t != "text" {
				continue
			}
			if text, ok := part["text"].(string); ok {
				b.WriteString(text)
			}
		}
		return b.String()
	default:
		return ""
	}
}

func toCanonicalToolCalls(calls []types.ToolCall) []providers.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]providers.ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = providers.ToolCall{
			ID:   tc.ID,
			Type: tc.Type,
			Function: providers.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}

func fromCanonicalToolCalls(calls []providers.ToolCall) []types.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]types.ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = types.ToolCall{
			ID:   tc.ID,
			Type: providers.ToolTypeFunction,
			Function: types.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}
