package cohere

import (
	"strings"

	"tycho-hq/meridian/pkg/providers"
)

// Wire types for the Cohere v2 chat API.

// chatRequest is the request body for POST {base}/v2/chat.
type chatRequest struct {
	Model         string        `json:"model"`
	Messages      []chatMessage `json:"messages"`
	Temperature   float64       `json:"temperature,omitempty"`
	MaxTokens     int           `json:"max_tokens,omitempty"`
	P             float64       `json:"p,omitempty"`
	Stream        bool          `json:"stream,omitempty"`
	Tools         []chatTool    `json:"tools,omitempty"`
	StopSequences []string      `json:"stop_sequences,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
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

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// chatResponse is the non-streaming response body.
type chatResponse struct {
	ID           string           `json:"id"`
	FinishReason string           `json:"finish_reason"`
	Message      assistantMessage `json:"message"`
	Usage        chatUsage        `json:"usage"`
}

// assistantMessage carries the assistant turn: typed content blocks plus any
// tool calls.
type assistantMessage struct {
	Role      string         `json:"role"`
	Content   []contentBlock `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
	ToolPlan  string         `json:"tool_plan,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type chatUsage struct {
	BilledUnits tokenCounts `json:"billed_units"`
	Tokens      tokenCounts `json:"tokens"`
}

type tokenCounts struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Streaming wire types: every SSE payload is a JSON object whose "type"
// field names the event.

const (
	eventMessageStart = "message-start"
	eventContentDelta = "content-delta"
	eventMessageEnd   = "message-end"
)

type streamEvent struct {
	Type  string       `json:"type"`
	ID    string       `json:"id,omitempty"`
	Index int          `json:"index,omitempty"`
	Delta *streamDelta `json:"delta,omitempty"`
}

type streamDelta struct {
	Message      *streamMessage `json:"message,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
	Usage        *chatUsage     `json:"usage,omitempty"`
}

type streamMessage struct {
	Content  *contentBlock `json:"content,omitempty"`
	ToolPlan string        `json:"tool_plan,omitempty"`
}

// transformRequest converts the canonical request to the Cohere wire shape.
// Cohere accepts system turns directly in the message list, so no prompt
// surgery is needed; top_p travels as "p".
func transformRequest(req *providers.Request) *chatRequest {
	out := &chatRequest{
		Model:         req.Model,
		Messages:      make([]chatMessage, len(req.Messages)),
		Temperature:   req.Temperature,
		MaxTokens:     req.MaxTokens,
		P:             req.TopP,
		Stream:        req.Stream,
		StopSequences: req.Stop,
	}

	for i, msg := range req.Messages {
		out.Messages[i] = chatMessage{
			Role:       msg.Role,
			Content:    msg.Content,
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
func transformResponse(resp *chatResponse, model string) *providers.Response {
	return &providers.Response{
		ID:           resp.ID,
		Model:        model,
		Content:      joinContent(resp.Message.Content),
		FinishReason: normalizeFinishReason(resp.FinishReason),
		ToolCalls:    fromWireToolCalls(resp.Message.ToolCalls),
		Usage:        toUsage(&resp.Usage),
	}
}

// joinContent flattens the typed content blocks into one string.
func joinContent(blocks []contentBlock) string {
	var b strings.Builder
	for _, block := range blocks {
		if block.Type == "" || block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// toUsage prefers billed units and falls back to raw token counts.
func toUsage(usage *chatUsage) providers.TokenUsage {
	counts := usage.BilledUnits
	if counts.InputTokens == 0 && counts.OutputTokens == 0 {
		counts = usage.Tokens
	}
	return providers.TokenUsage{
		PromptTokens:     counts.InputTokens,
		CompletionTokens: counts.OutputTokens,
		TotalTokens:      counts.InputTokens + counts.OutputTokens,
	}
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

// normalizeFinishReason maps Cohere's upper-case reasons onto the canonical
// set. Unknown reasons pass through lower-cased.
func normalizeFinishReason(reason string) string {
	switch strings.ToUpper(reason) {
	case "":
		return ""
	case "COMPLETE", "STOP_SEQUENCE":
		return providers.FinishReasonStop
	case "MAX_TOKENS":
		return providers.FinishReasonLength
	case "TOOL_CALL":
		return providers.FinishReasonToolCalls
	default:
		return strings.ToLower(reason)
	}
}
