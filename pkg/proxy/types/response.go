package types

// ChatCompletionResponse is the non-streaming chat completion response.
type ChatCompletionResponse struct {
	// ID is the completion identifier ("chatcmpl-...").
	ID string `json:"id"`

	// Object is always "chat.completion".
	Object string `json:"object"`

	// Created is the Unix timestamp of creation.
	Created int64 `json:"created"`

	// Model is the model id reported to the client.
	Model string `json:"model"`

	// Choices holds the single generated choice.
	Choices []Choice `json:"choices"`

	// Usage is the token accounting for the request.
	Usage Usage `json:"usage"`
}

// Choice is one completion alternative.
type Choice struct {
	// Index of this choice.
	Index int `json:"index"`

	// Message is the generated message.
	Message Message `json:"message"`

	// FinishReason explains why generation stopped
	// (stop, length, tool_calls, content_filter).
	FinishReason string `json:"finish_reason"`
}

// Usage is the token accounting block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionStreamChunk is one SSE frame of a streaming completion.
type ChatCompletionStreamChunk struct {
	// ID is the completion identifier, identical across all frames.
	ID string `json:"id"`

	// Object is always "chat.completion.chunk".
	Object string `json:"object"`

	// Created is the Unix timestamp of the chunk.
	Created int64 `json:"created"`

	// Model is the model id reported to the client.
	Model string `json:"model"`

	// Choices holds the incremental delta; empty on the terminal
	// usage/metadata frame.
	Choices []StreamChoice `json:"choices"`

	// Usage is set on the terminal frame when the provider reported it.
	Usage *Usage `json:"usage,omitempty"`

	// Meridian carries gateway routing attribution on the terminal frame.
	Meridian *RouteInfo `json:"meridian,omitempty"`
}

// StreamChoice is one choice slot of a stream frame.
type StreamChoice struct {
	// Index of this choice.
	Index int `json:"index"`

	// Delta is the incremental content.
	Delta Delta `json:"delta"`

	// FinishReason is set on the last content frame.
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental payload of a stream frame.
type Delta struct {
	// Role is set on the first frame only.
	Role string `json:"role,omitempty"`

	// Content is the incremental text.
	Content string `json:"content,omitempty"`

	// ToolCalls carries incremental tool call fragments.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// RouteInfo is the gateway's routing attribution: which provider and
// canonical model served the request, the tier that won, how many attempts
// were made, and whether a streaming request was downgraded.
type RouteInfo struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Tier       string `json:"tier"`
	Attempts   int    `json:"attempts"`
	Downgraded bool   `json:"downgraded,omitempty"`
}

// ModelList is the GET /v1/models response.
type ModelList struct {
	// Object is always "list".
	Object string `json:"object"`

	// Data lists the served model ids.
	Data []Model `json:"data"`
}

// Model is one entry of the model list: a canonical model or an alias.
type Model struct {
	// ID is the model or alias id.
	ID string `json:"id"`

	// Object is always "model".
	Object string `json:"object"`

	// Created is a Unix timestamp; the gateway reports its start time.
	Created int64 `json:"created"`

	// OwnedBy is the provider id for canonical models, "meridian" for
	// aliases.
	OwnedBy string `json:"owned_by"`
}
