package aihorde

import (
	"strings"

	"tycho-hq/meridian/pkg/providers"
)

// Wire types for the AI Horde text generation API.

// generateRequest is the body for POST /api/v2/generate/text/async.
type generateRequest struct {
	Prompt string         `json:"prompt"`
	Params generateParams `json:"params"`
	Models []string       `json:"models,omitempty"`
}

// generateParams follows the KoboldAI parameter names the Horde inherited.
type generateParams struct {
	MaxLength        int      `json:"max_length,omitempty"`
	MaxContextLength int      `json:"max_context_length,omitempty"`
	Temperature      float64  `json:"temperature,omitempty"`
	TopP             float64  `json:"top_p,omitempty"`
	StopSequence     []string `json:"stop_sequence,omitempty"`
}

// submitResponse acknowledges an accepted job.
type submitResponse struct {
	ID      string  `json:"id"`
	Kudos   float64 `json:"kudos"`
	Message string  `json:"message,omitempty"`
}

// statusResponse reports job progress; generations appear once done.
type statusResponse struct {
	Done        bool         `json:"done"`
	Faulted     bool         `json:"faulted"`
	Finished    int          `json:"finished"`
	Processing  int          `json:"processing"`
	Waiting     int          `json:"waiting"`
	QueuePos    int          `json:"queue_position"`
	IsPossible  bool         `json:"is_possible"`
	Generations []generation `json:"generations"`
}

type generation struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	State      string `json:"state"`
	WorkerName string `json:"worker_name"`
}

// defaultMaxLength bounds output when the caller sets no max_tokens; the
// Horde rejects unbounded jobs.
const defaultMaxLength = 512

// transformRequest flattens the chat into a single instruct prompt and maps
// sampling parameters onto KoboldAI names.
func transformRequest(req *providers.Request) *generateRequest {
	out := &generateRequest{
		Prompt: flattenMessages(req.Messages),
		Params: generateParams{
			MaxLength:    req.MaxTokens,
			Temperature:  req.Temperature,
			TopP:         req.TopP,
			StopSequence: req.Stop,
		},
	}
	if out.Params.MaxLength == 0 {
		out.Params.MaxLength = defaultMaxLength
	}
	if req.Model != "" {
		out.Models = []string{req.Model}
	}
	return out
}

// flattenMessages renders the conversation as an instruct prompt. System
// text leads, turns are labeled, and a trailing assistant label cues the
// model to continue.
func flattenMessages(messages []providers.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case providers.RoleSystem:
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		case providers.RoleAssistant:
			b.WriteString("### Response:\n")
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		default:
			b.WriteString("### Instruction:\n")
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		}
	}
	b.WriteString("### Response:\n")
	return b.String()
}

// transformStatus converts a finished job to the canonical response.
// promptChars is the length of the flattened prompt, for usage estimation.
func transformStatus(status *statusResponse, jobID, model string, promptChars int) *providers.Response {
	gen := status.Generations[0]

	respModel := gen.Model
	if respModel == "" {
		respModel = model
	}

	finishReason := providers.FinishReasonStop
	if gen.State == "censored" {
		finishReason = providers.FinishReasonContentFilter
	}

	return &providers.Response{
		ID:           jobID,
		Model:        respModel,
		Content:      gen.Text,
		FinishReason: finishReason,
		Usage:        estimateUsage(promptChars, gen.Text),
	}
}

// estimateUsage approximates token counts from text length. The Horde
// accounts in kudos, not tokens, so four characters per token is as good as
// it gets for quota purposes.
func estimateUsage(promptChars int, completion string) providers.TokenUsage {
	prompt := promptChars / 4
	out := len(completion) / 4
	if len(completion) > 0 && out == 0 {
		out = 1
	}
	return providers.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: out,
		TotalTokens:      prompt + out,
	}
}
