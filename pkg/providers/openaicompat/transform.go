package openaicompat

import (
	"tycho-hq/meridian/pkg/providers"
)

// Wire types for the OpenAI chat completions API.

// chatRequest is the request body for POST {base}/chat/completions.
type chatRequest struct {
	Model          string                 `json:"model"`
	Messages       []chatMessage          `json:"messages"`
	Temperature    float64                `json:"temperature,omitempty"`
	MaxTokens      int                    `json:"max_tokens,omitempty"`
	TopP           float64                `json:"top_p,omitempty"`
	Stream         bool                   `json:"stream,omitempty"`
	StreamOptions  *streamOptions         `json:"stream_options,omitempty"`
	Tools          []chatTool             `json:"tools,omitempty"`
	ToolChoice     interface{}            `json:"tool_choice,omitempty"`
	Stop           []string               `json:"stop,omitempty"`
	User           string                 `json:"user,omitempty"`
	N              int                    `json:"n,omitempty"`
	ResponseFormat map[string]interface{} `json:"response_format,omitempty"`
	LogProbs       bool                   `json:"logprobs,omitempty"`
}

// streamOptions asks the upstream to append a usage chunk to the stream.
type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string          `json:"type"`
	Function chatFunctionDef `json:"function"`
}

type chatFunctionDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// streamChunk is one decoded SSE payload. A chunk with no choices and a
// usage object is the upstream's accounting chunk; a chunk with a non-empty
// error is an in-band failure.
type streamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []streamChoice `json:"choices"`
	Usage   *chatUsage     `json:"usage,omitempty"`
	Error   *streamFault   `json:"error,omitempty"`
}

type streamChoice struct {
	Index        int         `json:"index"`
	Delta        streamDelta `json:"delta"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

type streamDelta struct {
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

// streamFault is the error object some upstreams embed mid-stream instead of
// breaking the connection.
type streamFault struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    interface{} `json:"code,omitempty"`
}

// transformRequest converts the canonical request to the OpenAI wire shape.
// Exactly one completion is requested regardless of what the caller sent.
func transformRequest(req *providers.Request) *chatRequest {
	out := &chatRequest{
		Model:          req.Model,
		Messages:       make([]chatMessage, len(req.Messages)),
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		TopP:           req.TopP,
		Stream:         req.Stream,
		Stop:           req.Stop,
		User:           req.User,
		ToolChoice:     req.ToolChoice,
		ResponseFormat: req.ResponseFormat,
		LogProbs:       req.LogProbs,
		N:              1,
	}

	for i, msg := range req.Messages {
		out.Messages[i] = chatMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
			ToolCalls:  toWireToolCalls(msg.ToolCalls),
		}
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]chatTool, len(req.Tools))
		for i, tool := range req.Tools {
			out.Tools[i] = chatTool{
				Type: tool.Type,
				Function: chatFunctionDef{
					Name:        tool.Function.Name,
					Description: tool.Function.Description,
					Parameters:  tool.Function.Parameters,
				},
			}
		}
	}

	return out
}

// transformResponse converts an upstream response to the canonical shape.
func transformResponse(resp *chatResponse, providerID string) (*providers.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, &providers.ParseError{
			Provider: providerID,
			Cause:    errNoChoices,
		}
	}

	choice := resp.Choices[0]
	return &providers.Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: normalizeFinishReason(choice.FinishReason),
		ToolCalls:    fromWireToolCalls(choice.Message.ToolCalls),
		Usage: providers.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Created: resp.Created,
	}, nil
}

// transformStreamChunk converts one decoded SSE payload. A usage-only chunk
// (empty choices) becomes the terminal accounting chunk; it is not an error.
func transformStreamChunk(chunk *streamChunk) *providers.Chunk {
	out := &providers.Chunk{
		ID:      chunk.ID,
		Model:   chunk.Model,
		Created: chunk.Created,
	}

	if len(chunk.Choices) > 0 {
		choice := chunk.Choices[0]
		out.Delta = choice.Delta.Content
		out.FinishReason = normalizeFinishReason(choice.FinishReason)
		out.ToolCalls = fromWireToolCalls(choice.Delta.ToolCalls)
	}

	if chunk.Usage != nil {
		out.Usage = &providers.TokenUsage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}

	return out
}

func toWireToolCalls(calls []providers.ToolCall) []chatToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]chatToolCall, len(calls))
	for i, tc := range calls {
		out[i] = chatToolCall{
			ID:   tc.ID,
			Type: tc.Type,
			Function: chatFunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}

func fromWireToolCalls(calls []chatToolCall) []providers.ToolCall {
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

// normalizeFinishReason maps upstream finish reasons onto the canonical set.
// Unknown reasons pass through untouched.
func normalizeFinishReason(reason string) string {
	switch reason {
	case "stop", "end_turn":
		return providers.FinishReasonStop
	case "length", "max_tokens":
		return providers.FinishReasonLength
	case "tool_calls", "function_call":
		return providers.FinishReasonToolCalls
	case "content_filter":
		return providers.FinishReasonContentFilter
	default:
		return reason
	}
}
