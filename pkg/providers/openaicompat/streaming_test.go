package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	testhelpers "tycho-hq/meridian/internal/providers"
	"tycho-hq/meridian/pkg/providers"
)

func TestStream(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamFrames: []string{
			testhelpers.OpenAIStreamFrame("Hello", ""),
			testhelpers.OpenAIStreamFrame(", ", ""),
			testhelpers.OpenAIStreamFrame("world", ""),
			testhelpers.OpenAIStreamFrame("!", "stop"),
			testhelpers.OpenAIUsageFrame(10, 4),
		},
	})

	d := newTestDriver(t, mock, nil)
	chunks, err := d.Stream(context.Background(), testhelpers.StreamingRequest("m", "Hello"))
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	collected, err := testhelpers.CollectChunks(t, chunks)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}

	if got := testhelpers.ConcatChunks(collected); got != "Hello, world!" {
		t.Errorf("content = %q, want %q", got, "Hello, world!")
	}

	// The usage-only accounting chunk arrives last.
	last := collected[len(collected)-1]
	if last.Usage == nil {
		t.Fatal("last chunk Usage = nil, want token accounting")
	}
	if last.Usage.TotalTokens != 14 {
		t.Errorf("Usage.TotalTokens = %d, want 14", last.Usage.TotalTokens)
	}

	// The finish reason arrives on the final content chunk.
	var sawStop bool
	for _, c := range collected {
		if c.FinishReason == providers.FinishReasonStop {
			sawStop = true
		}
	}
	if !sawStop {
		t.Error("no chunk carried finish reason stop")
	}
}

func TestStream_RequestsUsage(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamFrames: []string{testhelpers.OpenAIStreamFrame("ok", "stop")},
	})

	d := newTestDriver(t, mock, nil)
	chunks, err := d.Stream(context.Background(), testhelpers.StreamingRequest("m", "hi"))
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}
	if _, err := testhelpers.CollectChunks(t, chunks); err != nil {
		t.Fatalf("stream error: %v", err)
	}

	var wire chatRequest
	if err := json.Unmarshal(mock.LastRequest().Body, &wire); err != nil {
		t.Fatalf("unmarshal wire request: %v", err)
	}
	if !wire.Stream {
		t.Error("wire.Stream = false, want true")
	}
	if wire.StreamOptions == nil || !wire.StreamOptions.IncludeUsage {
		t.Errorf("wire.StreamOptions = %+v, want include_usage", wire.StreamOptions)
	}
	if got := mock.LastRequest().Header.Get("Accept"); got != "text/event-stream" {
		t.Errorf("Accept = %q, want text/event-stream", got)
	}
}

func TestStream_StreamOptionsQuirkOff(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamFrames: []string{testhelpers.OpenAIStreamFrame("ok", "stop")},
	})

	d := newTestDriver(t, mock, map[string]string{"stream_options": "off"})
	chunks, err := d.Stream(context.Background(), testhelpers.StreamingRequest("m", "hi"))
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}
	if _, err := testhelpers.CollectChunks(t, chunks); err != nil {
		t.Fatalf("stream error: %v", err)
	}

	var wire chatRequest
	if err := json.Unmarshal(mock.LastRequest().Body, &wire); err != nil {
		t.Fatalf("unmarshal wire request: %v", err)
	}
	if wire.StreamOptions != nil {
		t.Errorf("wire.StreamOptions = %+v, want omitted for upstreams that reject it", wire.StreamOptions)
	}
}

func TestStream_NoDoneSentinel(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamFrames: []string{
			testhelpers.OpenAIStreamFrame("partial", "stop"),
		},
		OmitDone: true,
	})

	d := newTestDriver(t, mock, nil)
	chunks, err := d.Stream(context.Background(), testhelpers.StreamingRequest("m", "hi"))
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	// A clean close without [DONE] still ends the stream without error.
	collected, err := testhelpers.CollectChunks(t, chunks)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if got := testhelpers.ConcatChunks(collected); got != "partial" {
		t.Errorf("content = %q, want %q", got, "partial")
	}
}

func TestStream_MidStreamErrorObject(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	fault, _ := json.Marshal(map[string]interface{}{
		"error": map[string]interface{}{
			"message": "upstream overloaded",
			"type":    "server_error",
		},
	})

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamFrames: []string{
			testhelpers.OpenAIStreamFrame("Hel", ""),
			string(fault),
		},
	})

	d := newTestDriver(t, mock, nil)
	chunks, err := d.Stream(context.Background(), testhelpers.StreamingRequest("m", "hi"))
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	collected, err := testhelpers.CollectChunks(t, chunks)
	if err == nil {
		t.Fatal("stream error = nil, want in-band error surfaced")
	}

	var streamErr *providers.StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("error = %v, want StreamError", err)
	}
	if got := testhelpers.ConcatChunks(collected); got != "Hel" {
		t.Errorf("content before error = %q, want %q", got, "Hel")
	}
}

func TestStream_ConnectionDrop(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamFrames: []string{
			testhelpers.OpenAIStreamFrame("Hel", ""),
			testhelpers.OpenAIStreamFrame("lo", ""),
			testhelpers.OpenAIStreamFrame("never sent", "stop"),
		},
		DropAfter: 2,
	})

	d := newTestDriver(t, mock, nil)
	chunks, err := d.Stream(context.Background(), testhelpers.StreamingRequest("m", "hi"))
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	collected, err := testhelpers.CollectChunks(t, chunks)
	if err == nil {
		t.Fatal("stream error = nil, want broken-connection error")
	}
	if got := testhelpers.ConcatChunks(collected); got != "Hello" {
		t.Errorf("content before drop = %q, want %q", got, "Hello")
	}
}

func TestStream_UpstreamRejectsBeforeStreaming(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.RateLimitResponse(15))

	d := newTestDriver(t, mock, nil)
	_, err := d.Stream(context.Background(), testhelpers.StreamingRequest("m", "hi"))

	var rlErr *providers.RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("Stream() error = %v, want RateLimitError before any chunk", err)
	}
}

func TestStream_ContextCancellation(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	frames := make([]string, 0, 64)
	for i := 0; i < 64; i++ {
		frames = append(frames, testhelpers.OpenAIStreamFrame("x", ""))
	}
	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamFrames: frames,
		Delay:        10 * time.Millisecond,
	})

	d := newTestDriver(t, mock, nil)
	ctx, cancel := context.WithCancel(context.Background())

	chunks, err := d.Stream(ctx, testhelpers.StreamingRequest("m", "hi"))
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	// Read one chunk, then cancel; the channel must close promptly.
	<-chunks
	cancel()

	testhelpers.WithTimeout(t, 2*time.Second, func(timeoutCtx context.Context) {
		for range chunks {
		}
	})
}

func TestStreamReader_SkipsKeepalives(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamFrames: []string{
			": OPENROUTER PROCESSING",
			testhelpers.OpenAIStreamFrame("Hi", "stop"),
		},
	})

	d := newTestDriver(t, mock, nil)
	chunks, err := d.Stream(context.Background(), testhelpers.StreamingRequest("m", "hi"))
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	collected, err := testhelpers.CollectChunks(t, chunks)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if got := testhelpers.ConcatChunks(collected); got != "Hi" {
		t.Errorf("content = %q, want keepalive skipped", got)
	}
}
