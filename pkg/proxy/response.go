package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/proxy/types"
)

// Routing attribution headers set on every completed response.
const (
	ProviderHeader   = "X-Meridian-Provider"
	ModelHeader      = "X-Meridian-Model"
	TierHeader       = "X-Meridian-Tier"
	AttemptsHeader   = "X-Meridian-Attempts"
	DowngradedHeader = "X-Meridian-Downgraded"
)

// NewCompletionID mints a chat completion id. Upstream ids are reused when
// present so a response correlates with the provider's logs.
func NewCompletionID(upstreamID string) string {
	id := strings.TrimPrefix(upstreamID, "chatcmpl-")
	if id == "" {
		id = uuid.NewString()
	}
	return "chatcmpl-" + id
}

// FormatChatCompletionResponse converts a canonical response to the OpenAI
// wire shape. The model reported to the client is the id the client asked
// for, not the provider-native path.
func FormatChatCompletionResponse(resp *providers.Response, requestedModel string) *types.ChatCompletionResponse {
	created := resp.Created
	if created == 0 {
		created = time.Now().Unix()
	}
	return &types.ChatCompletionResponse{
		ID:      NewCompletionID(resp.ID),
		Object:  "chat.completion",
		Created: created,
		Model:   requestedModel,
		Choices: []types.Choice{
			{
				Index: 0,
				Message: types.Message{
					Role:      providers.RoleAssistant,
					Content:   resp.Content,
					ToolCalls: fromCanonicalToolCalls(resp.ToolCalls),
				},
				FinishReason: resp.FinishReason,
			},
		},
		Usage: types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
}

// FormatStreamChunk converts one canonical chunk to an SSE frame. The first
// frame of a stream carries the assistant role per OpenAI convention.
func FormatStreamChunk(chunk *providers.Chunk, requestedModel, responseID string, first bool) *types.ChatCompletionStreamChunk {
	created := chunk.Created
	if created == 0 {
		created = time.Now().Unix()
	}
	frame := &types.ChatCompletionStreamChunk{
		ID:      responseID,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   requestedModel,
		Choices: []types.StreamChoice{
			{
				Index: 0,
				Delta: types.Delta{
					Content:   chunk.Delta,
					ToolCalls: fromCanonicalToolCalls(chunk.ToolCalls),
				},
			},
		},
	}
	if first {
		frame.Choices[0].Delta.Role = providers.RoleAssistant
	}
	if chunk.FinishReason != "" {
		reason := chunk.FinishReason
		frame.Choices[0].FinishReason = &reason
	}
	if chunk.Usage != nil {
		frame.Usage = &types.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}
	return frame
}

// FormatMetadataChunk builds the terminal frame carrying routing
// attribution (and usage when the provider reported it) before [DONE].
func FormatMetadataChunk(responseID, requestedModel string, usage *types.Usage, route *types.RouteInfo) *types.ChatCompletionStreamChunk {
	return &types.ChatCompletionStreamChunk{
		ID:       responseID,
		Object:   "chat.completion.chunk",
		Created:  time.Now().Unix(),
		Model:    requestedModel,
		Choices:  []types.StreamChoice{},
		Usage:    usage,
		Meridian: route,
	}
}

// SetRouteHeaders attaches routing attribution to the response headers.
// Must be called before the status line is written.
func SetRouteHeaders(w http.ResponseWriter, route *types.RouteInfo) {
	w.Header().Set(ProviderHeader, route.Provider)
	w.Header().Set(ModelHeader, route.Model)
	w.Header().Set(TierHeader, route.Tier)
	w.Header().Set(AttemptsHeader, strconv.Itoa(route.Attempts))
	if route.Downgraded {
		w.Header().Set(DowngradedHeader, "true")
	}
}

// WriteJSONResponse writes a JSON body with the given status.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("encode JSON response: %w", err)
	}
	return nil
}

// WriteErrorResponse writes an OpenAI error envelope with the status its
// type maps to.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	return WriteJSONResponse(w, errResp.Error.HTTPStatusCode(), errResp)
}

// SetSSEHeaders prepares the response for server-sent events.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteSSEChunk writes one data frame and flushes it to the client.
func WriteSSEChunk(w http.ResponseWriter, chunk *types.ChatCompletionStreamChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal SSE chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE chunk: %w", err)
	}
	flush(w)
	return nil
}

// WriteSSEError writes the in-band error frame used when a stream breaks
// after its first byte: a flat object naming the error class and the
// provider whose stream failed.
func WriteSSEError(w http.ResponseWriter, class providers.ErrorClass, providerID string) error {
	frame := struct {
		Error    string `json:"error"`
		Provider string `json:"provider"`
	}{
		Error:    string(class),
		Provider: providerID,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal SSE error: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE error: %w", err)
	}
	flush(w)
	return nil
}

// WriteSSEDone writes the final [DONE] marker.
func WriteSSEDone(w http.ResponseWriter) error {
	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("write SSE done marker: %w", err)
	}
	flush(w)
	return nil
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
