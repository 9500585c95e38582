package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"tycho-hq/meridian/pkg/gateway"
	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/proxy"
	"tycho-hq/meridian/pkg/proxy/types"
)

// ChatHandler serves POST /v1/chat/completions.
type ChatHandler struct {
	frontend Frontend
	metrics  Recorder
	logger   *slog.Logger
}

// NewChatHandler builds the chat completions handler. The recorder may be
// nil, in which case requests are served without telemetry.
func NewChatHandler(frontend Frontend, recorder Recorder, logger *slog.Logger) *ChatHandler {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		frontend: frontend,
		metrics:  recorder,
		logger:   logger.With("component", "chat_handler"),
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		_ = proxy.WriteJSONResponse(w, http.StatusMethodNotAllowed,
			types.NewInvalidRequestError("method not allowed, use POST", "", ""))
		return
	}

	wireReq, err := proxy.ParseChatCompletionRequest(r)
	if err != nil {
		h.metrics.RecordRequest("none", "unknown", "rejected", time.Since(start))
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	req := proxy.ToCanonicalRequest(wireReq)

	result, err := h.frontend.Run(r.Context(), req)
	if err != nil {
		// A client that hung up gets nothing; the connection is dead and
		// any status we chose would be invented.
		if r.Context().Err() != nil {
			h.logger.Debug("client disconnected during request",
				"model", wireReq.Model)
			return
		}
		errResp := proxy.HandleError(err)
		h.metrics.RecordRequest("none", wireReq.Model, errOutcome(errResp), time.Since(start))
		_ = proxy.WriteErrorResponse(w, errResp)
		return
	}

	route := &types.RouteInfo{
		Provider:   result.Metadata.Provider,
		Model:      result.Metadata.Model,
		Tier:       result.Metadata.Tier,
		Attempts:   result.Metadata.Attempts,
		Downgraded: result.Metadata.Downgraded,
	}
	h.metrics.RecordAttempts(result.Metadata.Model, result.Metadata.Attempts)
	h.metrics.RecordTierSelected(result.Metadata.Tier)

	if result.Stream != nil {
		h.streamResponse(w, r, result.Stream, wireReq.Model, route, start)
		return
	}

	h.metrics.RecordRequest(route.Provider, route.Model, "success", time.Since(start))
	if result.Response != nil {
		h.metrics.RecordTokens(route.Provider, route.Model,
			result.Response.Usage.PromptTokens, result.Response.Usage.CompletionTokens)
	}

	proxy.SetRouteHeaders(w, route)
	_ = proxy.WriteJSONResponse(w, http.StatusOK,
		proxy.FormatChatCompletionResponse(result.Response, wireReq.Model))
}

// errOutcome classifies a failed request for telemetry: client mistakes
// are "rejected", everything the gateway could not serve is "error".
func errOutcome(errResp *types.ErrorResponse) string {
	if errResp.Error.HTTPStatusCode() == http.StatusBadRequest {
		return "rejected"
	}
	return "error"
}

// streamResponse relays the chunk stream as SSE frames. Usage is withheld
// from content frames and delivered on the terminal metadata frame, the
// OpenAI include_usage convention. A chunk carrying an error becomes the
// in-band error frame followed by [DONE]; the stream is over either way.
func (h *ChatHandler) streamResponse(w http.ResponseWriter, r *http.Request, stream <-chan *providers.Chunk, requestedModel string, route *types.RouteInfo, start time.Time) {
	proxy.SetRouteHeaders(w, route)
	proxy.SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	var usage *types.Usage
	responseID := ""
	first := true
	ttfbSeen := false

	for chunk := range stream {
		if !ttfbSeen {
			ttfbSeen = true
			h.metrics.RecordTTFB(route.Provider, route.Model, time.Since(start))
		}

		if chunk.Err != nil {
			class := providers.Classify(chunk.Err)
			h.logger.Warn("stream failed after first byte",
				"provider", route.Provider,
				"class", string(class),
				"error", chunk.Err)
			h.metrics.RecordRequest(route.Provider, route.Model, "error", time.Since(start))
			_ = proxy.WriteSSEError(w, class, route.Provider)
			_ = proxy.WriteSSEDone(w)
			return
		}

		if responseID == "" {
			responseID = proxy.NewCompletionID(chunk.ID)
		}
		if chunk.Usage != nil {
			usage = &types.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
			// A pure accounting chunk has nothing to say to the client here.
			if chunk.Delta == "" && len(chunk.ToolCalls) == 0 && chunk.FinishReason == "" {
				continue
			}
		}

		frame := proxy.FormatStreamChunk(chunk, requestedModel, responseID, first)
		frame.Usage = nil
		first = false

		if err := proxy.WriteSSEChunk(w, frame); err != nil {
			h.logger.Debug("client disconnected mid-stream",
				"provider", route.Provider)
			h.metrics.RecordRequest(route.Provider, route.Model, "error", time.Since(start))
			return
		}
	}

	h.metrics.RecordRequest(route.Provider, route.Model, "success", time.Since(start))
	if usage != nil {
		h.metrics.RecordTokens(route.Provider, route.Model, usage.PromptTokens, usage.CompletionTokens)
	}

	if r.Context().Err() != nil {
		return
	}
	if responseID == "" {
		responseID = proxy.NewCompletionID("")
	}
	_ = proxy.WriteSSEChunk(w, proxy.FormatMetadataChunk(responseID, requestedModel, usage, route))
	_ = proxy.WriteSSEDone(w)
}
