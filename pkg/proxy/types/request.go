package types

import "fmt"

// ChatCompletionRequest is the OpenAI-compatible chat completion request
// body. The field set matches what OpenAI SDKs send; gateway extensions
// (preferred_provider) are additive so standard clients need no changes.
type ChatCompletionRequest struct {
	// Model is the alias or canonical model id to route.
	Model string `json:"model"`

	// Messages is the conversation history.
	Messages []Message `json:"messages"`

	// Temperature controls randomness (0.0 to 2.0). Optional.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens caps the number of generated tokens. Optional.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0). Optional.
	TopP *float64 `json:"top_p,omitempty"`

	// N is the number of completions per prompt. Only 1 is supported.
	N *int `json:"n,omitempty"`

	// Stream selects server-sent events delivery.
	Stream bool `json:"stream,omitempty"`

	// Stop lists up to 4 sequences that end generation.
	Stop []string `json:"stop,omitempty"`

	// User is an end-user identifier passed through for abuse monitoring.
	User string `json:"user,omitempty"`

	// Tools lists functions the model may call.
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice is "none", "auto", or a specific function selector.
	ToolChoice interface{} `json:"tool_choice,omitempty"`

	// ResponseFormat requests structured output, e.g. {"type":"json_object"}
	// or a json_schema object. Passed through to the provider.
	ResponseFormat map[string]interface{} `json:"response_format,omitempty"`

	// LogProbs requests token log probabilities.
	LogProbs bool `json:"logprobs,omitempty"`

	// PreferredProvider pins the first routing attempt to one provider.
	// Gateway extension; absent means normal tier order.
	PreferredProvider string `json:"preferred_provider,omitempty"`
}

// Message is a single conversation turn. Content accepts either a plain
// string or the multimodal content-part array; text parts are flattened
// during conversion.
type Message struct {
	// Role is "system", "user", "assistant" or "tool".
	Role string `json:"role"`

	// Content is a string or an array of content parts.
	Content interface{} `json:"content"`

	// Name optionally names the author.
	Name string `json:"name,omitempty"`

	// ToolCalls lists tool invocations on assistant messages.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Tool declares a callable function.
type Tool struct {
	// Type is always "function".
	Type string `json:"type"`

	// Function describes the callable.
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes one callable function.
type FunctionDefinition struct {
	// Name of the function.
	Name string `json:"name"`

	// Description of what the function does.
	Description string `json:"description,omitempty"`

	// Parameters is a JSON Schema object.
	Parameters map[string]interface{} `json:"parameters"`
}

// ToolCall is a function invocation emitted by the model.
type ToolCall struct {
	// ID identifies this call.
	ID string `json:"id"`

	// Type is always "function".
	Type string `json:"type"`

	// Function carries the name and serialized arguments.
	Function FunctionCall `json:"function"`
}

// FunctionCall is the name/arguments pair of a tool call.
type FunctionCall struct {
	// Name of the function being called.
	Name string `json:"name"`

	// Arguments is a JSON-encoded argument object.
	Arguments string `json:"arguments"`
}

// Validate checks required fields and value ranges before the request
// enters the gateway.
func (r *ChatCompletionRequest) Validate() error {
	if r.Model == "" {
		return &ValidationError{Field: "model", Message: "model is required"}
	}
	if len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Message: "messages must contain at least one message"}
	}
	if r.Temperature != nil && (*r.Temperature < 0.0 || *r.Temperature > 2.0) {
		return &ValidationError{Field: "temperature", Message: "temperature must be between 0.0 and 2.0"}
	}
	if r.TopP != nil && (*r.TopP < 0.0 || *r.TopP > 1.0) {
		return &ValidationError{Field: "top_p", Message: "top_p must be between 0.0 and 1.0"}
	}
	if r.MaxTokens != nil && *r.MaxTokens < 1 {
		return &ValidationError{Field: "max_tokens", Message: "max_tokens must be greater than 0"}
	}
	if r.N != nil && *r.N != 1 {
		return &ValidationError{Field: "n", Message: "only n=1 is supported"}
	}
	if len(r.Stop) > 4 {
		return &ValidationError{Field: "stop", Message: "stop sequences must not exceed 4"}
	}
	for i, msg := range r.Messages {
		if msg.Role == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("messages[%d].role", i),
				Message: "message role is required",
			}
		}
		if msg.Content == nil && len(msg.ToolCalls) == 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("messages[%d].content", i),
				Message: "message content is required when no tool_calls present",
			}
		}
	}
	return nil
}

// ValidationError is a wire-level request validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
