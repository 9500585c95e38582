package providers

// Message represents a single message in a conversation.
// It is provider-agnostic and is transformed to provider-native formats
// by each driver.
type Message struct {
	// Role identifies the message sender (system, user, assistant, tool)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`

	// Name is an optional name for the message sender
	Name string `json:"name,omitempty"`

	// ToolCalls contains function/tool calls made by the assistant (for assistant role)
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID is used when role is "tool" to reference which tool call this responds to
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall represents a function/tool call request from the model.
type ToolCall struct {
	// ID is a unique identifier for this tool call
	ID string `json:"id"`

	// Type is the type of tool call (currently always "function")
	Type string `json:"type"`

	// Function contains the function name and arguments
	Function FunctionCall `json:"function"`
}

// FunctionCall represents a specific function invocation.
type FunctionCall struct {
	// Name is the function name to call
	Name string `json:"name"`

	// Arguments is a JSON string containing the function arguments
	Arguments string `json:"arguments"`
}

// Tool represents a tool/function definition that the model can call.
type Tool struct {
	// Type is the type of tool (currently always "function")
	Type string `json:"type"`

	// Function contains the function definition
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition defines a callable function.
type FunctionDefinition struct {
	// Name is the function name
	Name string `json:"name"`

	// Description explains what the function does
	Description string `json:"description,omitempty"`

	// Parameters is a JSON Schema object describing the function parameters
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used (prompt + completion)
	TotalTokens int `json:"total_tokens"`
}

// Request is the canonical in-flight chat-completion request.
//
// Model starts as the user-supplied selector (alias or canonical id); the
// failover pipeline rewrites it to the provider-native model path before a
// driver sees it. Fields tagged json:"-" are routing state consumed inside
// the gateway and never sent upstream.
type Request struct {
	// Model is the model identifier
	Model string `json:"model"`

	// Messages is the conversation history
	Messages []Message `json:"messages"`

	// Temperature controls randomness (typically 0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0)
	TopP float64 `json:"top_p,omitempty"`

	// Stream indicates whether to stream the response
	Stream bool `json:"stream,omitempty"`

	// Tools is a list of tools the model can call
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice controls which tools can be called
	// Can be "none", "auto", or {"type": "function", "function": {"name": "my_function"}}
	ToolChoice interface{} `json:"tool_choice,omitempty"`

	// Stop sequences that will halt generation
	Stop []string `json:"stop,omitempty"`

	// ResponseFormat requests structured output (e.g. {"type": "json_object"})
	ResponseFormat map[string]interface{} `json:"response_format,omitempty"`

	// LogProbs requests log probabilities for output tokens
	LogProbs bool `json:"logprobs,omitempty"`

	// User is an optional end-user identifier for abuse monitoring
	User string `json:"user,omitempty"`

	// PreferredProvider pins the first attempt to a specific provider if set
	PreferredProvider string `json:"-"`

	// TokenEstimate is the estimated prompt+completion token count,
	// filled in before routing and used for quota accounting
	TokenEstimate int `json:"-"`

	// Metadata carries additional request context (request id, etc.);
	// it is not sent to providers
	Metadata map[string]string `json:"-"`
}

// Clone returns a shallow copy of the request. Drivers receive clones so the
// pipeline can rewrite Model per candidate without racing other attempts.
func (r *Request) Clone() *Request {
	cp := *r
	return &cp
}

// Response is the canonical completion response, normalized from
// provider-native formats.
type Response struct {
	// ID is the unique response identifier
	ID string `json:"id"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// Content is the generated text content
	Content string `json:"content"`

	// FinishReason indicates why generation stopped
	// (stop, length, tool_calls, content_filter)
	FinishReason string `json:"finish_reason"`

	// Usage contains token consumption information
	Usage TokenUsage `json:"usage"`

	// ToolCalls contains any tool/function calls made by the model
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Created is the Unix timestamp when the response was created
	Created int64 `json:"created"`

	// Metadata contains additional response context
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Chunk represents a single chunk in a streaming response.
//
// A well-formed stream is a finite sequence of content chunks followed by a
// terminal chunk carrying Usage, after which the channel closes. A chunk
// with Err set ends the stream abnormally.
type Chunk struct {
	// ID is the response identifier (same across all chunks)
	ID string `json:"id"`

	// Model is the model generating the response
	Model string `json:"model"`

	// Delta is the incremental content in this chunk
	Delta string `json:"delta"`

	// FinishReason is set when generation stopped (stop, length, ...)
	FinishReason string `json:"finish_reason,omitempty"`

	// ToolCalls contains incremental tool call information
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Usage is set on the terminal chunk
	Usage *TokenUsage `json:"usage,omitempty"`

	// Err is set if the stream failed; the chunk carrying it is final
	Err error `json:"-"`

	// Created is the Unix timestamp when the chunk was created
	Created int64 `json:"created"`
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reason constants
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonContentFilter = "content_filter"
)

// Tool type constants
const (
	ToolTypeFunction = "function"
)
