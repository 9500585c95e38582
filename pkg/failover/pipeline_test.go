package failover

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tycho-hq/meridian/pkg/catalog"
	"tycho-hq/meridian/pkg/config"
	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/routing"
)

type stubDriver struct {
	name     string
	complete func(ctx context.Context, req *providers.Request) (*providers.Response, error)
	stream   func(ctx context.Context, req *providers.Request) (<-chan *providers.Chunk, error)

	mu            sync.Mutex
	completeCalls int
	streamCalls   int
	seenModels    []string
}

func (d *stubDriver) Name() string { return d.name }
func (d *stubDriver) Kind() string { return "test" }
func (d *stubDriver) Close() error { return nil }

func (d *stubDriver) Complete(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	d.mu.Lock()
	d.completeCalls++
	d.seenModels = append(d.seenModels, req.Model)
	d.mu.Unlock()
	if d.complete == nil {
		return nil, errors.New("unscripted complete")
	}
	return d.complete(ctx, req)
}

func (d *stubDriver) Stream(ctx context.Context, req *providers.Request) (<-chan *providers.Chunk, error) {
	d.mu.Lock()
	d.streamCalls++
	d.seenModels = append(d.seenModels, req.Model)
	d.mu.Unlock()
	if d.stream == nil {
		return nil, errors.New("unscripted stream")
	}
	return d.stream(ctx, req)
}

func (d *stubDriver) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completeCalls + d.streamCalls
}

type stubDrivers map[string]providers.Driver

func (s stubDrivers) Driver(id string) (providers.Driver, error) {
	d, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("no driver registered for provider %q", id)
	}
	return d, nil
}

type quotaRecorder struct {
	mu       sync.Mutex
	deny     bool
	reserves []string
	commits  map[string]int64
}

func (q *quotaRecorder) Reserve(_ context.Context, providerID string, _ time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reserves = append(q.reserves, providerID)
	return !q.deny
}

func (q *quotaRecorder) CommitTokens(_ context.Context, providerID string, tokens int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.commits == nil {
		q.commits = make(map[string]int64)
	}
	q.commits[providerID] += tokens
}

func (q *quotaRecorder) committed(providerID string) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.commits[providerID]
}

func (q *quotaRecorder) reserveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.reserves)
}

type observation struct {
	provider string
	success  bool
}

type statsRecorder struct {
	mu       sync.Mutex
	observed []observation
}

func (s *statsRecorder) Observe(providerID string, _ time.Duration, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed = append(s.observed, observation{provider: providerID, success: success})
}

func (s *statsRecorder) all() []observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]observation(nil), s.observed...)
}

func testCandidate(providerID, modelID, modelPath string, tier routing.Tier) routing.Candidate {
	return routing.Candidate{
		Model:    &catalog.CanonicalModel{ID: modelID, ProviderID: providerID, ModelPath: modelPath},
		Provider: &catalog.Provider{ID: providerID, Enabled: true},
		Tier:     tier,
	}
}

func newTestPipeline(drivers stubDrivers, quotas *quotaRecorder, stats *statsRecorder) *Pipeline {
	return NewPipeline(drivers, quotas, stats, config.ResilienceConfig{
		AttemptTimeout: 2 * time.Second,
		TTFBTimeout:    100 * time.Millisecond,
		RetryBackoff:   time.Millisecond,
	}, nil)
}

func chatRequest(model string) *providers.Request {
	return &providers.Request{
		Model: model,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: "hello"},
		},
	}
}

func TestRun_Success(t *testing.T) {
	driver := &stubDriver{
		name: "groq",
		complete: func(_ context.Context, _ *providers.Request) (*providers.Response, error) {
			return &providers.Response{
				ID:      "resp-1",
				Content: "hi there",
				Usage:   providers.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
			}, nil
		},
	}
	quotas := &quotaRecorder{}
	stats := &statsRecorder{}
	p := newTestPipeline(stubDrivers{"groq": driver}, quotas, stats)

	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	out := p.Run(context.Background(), cand, chatRequest("llama"))

	if !out.Success() {
		t.Fatalf("Run() failed: %v", out.Err)
	}
	if out.Response == nil || out.Response.Content != "hi there" {
		t.Errorf("Response = %+v, want content %q", out.Response, "hi there")
	}
	if out.Provider != "groq" || out.Tier != routing.TierFree {
		t.Errorf("attribution = %s/%s, want groq/free", out.Provider, out.Tier)
	}
	if got := quotas.reserveCount(); got != 1 {
		t.Errorf("reservations = %d, want 1", got)
	}
	if got := quotas.committed("groq"); got != 30 {
		t.Errorf("committed tokens = %d, want 30", got)
	}
	obs := stats.all()
	if len(obs) != 1 || !obs[0].success {
		t.Errorf("observations = %+v, want one success", obs)
	}
}

func TestRun_RewritesModelPath(t *testing.T) {
	driver := &stubDriver{
		name: "groq",
		complete: func(_ context.Context, _ *providers.Request) (*providers.Response, error) {
			return &providers.Response{Content: "ok"}, nil
		},
	}
	p := newTestPipeline(stubDrivers{"groq": driver}, &quotaRecorder{}, &statsRecorder{})

	req := chatRequest("llama")
	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	p.Run(context.Background(), cand, req)

	if len(driver.seenModels) != 1 || driver.seenModels[0] != "llama-3.3-70b-versatile" {
		t.Errorf("driver saw models %v, want [llama-3.3-70b-versatile]", driver.seenModels)
	}
	if req.Model != "llama" {
		t.Errorf("caller request mutated: Model = %q, want %q", req.Model, "llama")
	}
}

func TestRun_ReservationDenied(t *testing.T) {
	driver := &stubDriver{name: "groq"}
	quotas := &quotaRecorder{deny: true}
	stats := &statsRecorder{}
	p := newTestPipeline(stubDrivers{"groq": driver}, quotas, stats)

	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	out := p.Run(context.Background(), cand, chatRequest("llama"))

	if out.Success() {
		t.Fatal("Run() succeeded, want denial")
	}
	if out.Class != providers.ErrorClassRateLimited {
		t.Errorf("Class = %s, want %s", out.Class, providers.ErrorClassRateLimited)
	}
	var rateErr *providers.RateLimitError
	if !errors.As(out.Err, &rateErr) {
		t.Errorf("Err = %T, want *RateLimitError", out.Err)
	}
	if driver.calls() != 0 {
		t.Errorf("driver calls = %d, want 0 when reservation denied", driver.calls())
	}
	if len(stats.all()) != 0 {
		t.Errorf("observations = %+v, want none for a denied reservation", stats.all())
	}
}

func TestRun_RetriesServerErrorOnce(t *testing.T) {
	var calls int
	driver := &stubDriver{
		name: "groq",
		complete: func(_ context.Context, _ *providers.Request) (*providers.Response, error) {
			calls++
			if calls == 1 {
				return nil, &providers.ProviderError{Provider: "groq", StatusCode: 500, Message: "upstream blew up"}
			}
			return &providers.Response{Content: "recovered", Usage: providers.TokenUsage{PromptTokens: 1, CompletionTokens: 1}}, nil
		},
	}
	stats := &statsRecorder{}
	p := newTestPipeline(stubDrivers{"groq": driver}, &quotaRecorder{}, stats)

	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	out := p.Run(context.Background(), cand, chatRequest("llama"))

	if !out.Success() {
		t.Fatalf("Run() failed after retry: %v", out.Err)
	}
	if driver.calls() != 2 {
		t.Errorf("driver calls = %d, want 2 (original plus one retry)", driver.calls())
	}
	obs := stats.all()
	if len(obs) != 1 || !obs[0].success {
		t.Errorf("observations = %+v, want one success", obs)
	}
}

func TestRun_RetryExhaustedSurfacesServerError(t *testing.T) {
	driver := &stubDriver{
		name: "groq",
		complete: func(_ context.Context, _ *providers.Request) (*providers.Response, error) {
			return nil, &providers.ProviderError{Provider: "groq", StatusCode: 500, Message: "still broken"}
		},
	}
	stats := &statsRecorder{}
	p := newTestPipeline(stubDrivers{"groq": driver}, &quotaRecorder{}, stats)

	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	out := p.Run(context.Background(), cand, chatRequest("llama"))

	if out.Success() {
		t.Fatal("Run() succeeded, want server error")
	}
	if driver.calls() != 2 {
		t.Errorf("driver calls = %d, want exactly 2", driver.calls())
	}
	if out.Class != providers.ErrorClassServer {
		t.Errorf("Class = %s, want %s", out.Class, providers.ErrorClassServer)
	}
	obs := stats.all()
	if len(obs) != 1 || obs[0].success {
		t.Errorf("observations = %+v, want one failure", obs)
	}
}

func TestRun_NoRetryForClientError(t *testing.T) {
	driver := &stubDriver{
		name: "groq",
		complete: func(_ context.Context, _ *providers.Request) (*providers.Response, error) {
			return nil, &providers.ProviderError{Provider: "groq", StatusCode: 400, Message: "bad request"}
		},
	}
	p := newTestPipeline(stubDrivers{"groq": driver}, &quotaRecorder{}, &statsRecorder{})

	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	out := p.Run(context.Background(), cand, chatRequest("llama"))

	if out.Class != providers.ErrorClassClient {
		t.Errorf("Class = %s, want %s", out.Class, providers.ErrorClassClient)
	}
	if driver.calls() != 1 {
		t.Errorf("driver calls = %d, want 1 (client errors never retry)", driver.calls())
	}
}

func TestRun_NoRetryForRateLimit(t *testing.T) {
	driver := &stubDriver{
		name: "groq",
		complete: func(_ context.Context, _ *providers.Request) (*providers.Response, error) {
			return nil, &providers.RateLimitError{Provider: "groq", RetryAfter: 30 * time.Second}
		},
	}
	p := newTestPipeline(stubDrivers{"groq": driver}, &quotaRecorder{}, &statsRecorder{})

	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	out := p.Run(context.Background(), cand, chatRequest("llama"))

	if out.Class != providers.ErrorClassRateLimited {
		t.Errorf("Class = %s, want %s", out.Class, providers.ErrorClassRateLimited)
	}
	if out.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %s, want 30s", out.RetryAfter)
	}
	if driver.calls() != 1 {
		t.Errorf("driver calls = %d, want 1 (rate limits never retry in place)", driver.calls())
	}
}

func TestRun_CancellationNotCharged(t *testing.T) {
	driver := &stubDriver{
		name: "groq",
		complete: func(ctx context.Context, _ *providers.Request) (*providers.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	stats := &statsRecorder{}
	p := newTestPipeline(stubDrivers{"groq": driver}, &quotaRecorder{}, stats)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	out := p.Run(ctx, cand, chatRequest("llama"))

	if !out.Cancelled {
		t.Fatalf("Cancelled = false, Err = %v, want cancellation", out.Err)
	}
	if out.Success() {
		t.Error("cancelled outcome reported as success")
	}
	if len(stats.all()) != 0 {
		t.Errorf("observations = %+v, want none for cancellation", stats.all())
	}
}

func TestRun_UnknownDriverFails(t *testing.T) {
	p := newTestPipeline(stubDrivers{}, &quotaRecorder{}, &statsRecorder{})

	cand := testCandidate("ghost", "ghost/model", "model", routing.TierFree)
	out := p.Run(context.Background(), cand, chatRequest("llama"))

	if out.Success() {
		t.Fatal("Run() succeeded with no driver registered")
	}
	if out.Class != providers.ErrorClassServer {
		t.Errorf("Class = %s, want %s", out.Class, providers.ErrorClassServer)
	}
}

func scriptedStream(chunks ...*providers.Chunk) func(context.Context, *providers.Request) (<-chan *providers.Chunk, error) {
	return func(ctx context.Context, _ *providers.Request) (<-chan *providers.Chunk, error) {
		ch := make(chan *providers.Chunk)
		go func() {
			defer close(ch)
			for _, c := range chunks {
				select {
				case ch <- c:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch, nil
	}
}

func drain(t *testing.T, stream <-chan *providers.Chunk) []*providers.Chunk {
	t.Helper()
	var got []*providers.Chunk
	deadline := time.After(2 * time.Second)
	for {
		select {
		case c, ok := <-stream:
			if !ok {
				return got
			}
			got = append(got, c)
		case <-deadline:
			t.Fatal("timed out draining stream")
		}
	}
}

func TestRun_Stream_DeliversAndCommitsUsage(t *testing.T) {
	driver := &stubDriver{
		name: "groq",
		stream: scriptedStream(
			&providers.Chunk{ID: "c-1", Delta: "hel"},
			&providers.Chunk{ID: "c-1", Delta: "lo"},
			&providers.Chunk{ID: "c-1", FinishReason: providers.FinishReasonStop, Usage: &providers.TokenUsage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12}},
		),
	}
	quotas := &quotaRecorder{}
	stats := &statsRecorder{}
	p := newTestPipeline(stubDrivers{"groq": driver}, quotas, stats)

	req := chatRequest("llama")
	req.Stream = true
	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	out := p.Run(context.Background(), cand, req)

	if !out.Success() {
		t.Fatalf("Run() failed: %v", out.Err)
	}
	if out.Stream == nil {
		t.Fatal("Stream = nil on streaming success")
	}
	chunks := drain(t, out.Stream)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if chunks[0].Delta != "hel" || chunks[1].Delta != "lo" {
		t.Errorf("deltas = %q %q, want hel lo", chunks[0].Delta, chunks[1].Delta)
	}
	if got := quotas.committed("groq"); got != 12 {
		t.Errorf("committed tokens = %d, want 12", got)
	}
	obs := stats.all()
	if len(obs) != 1 || !obs[0].success {
		t.Errorf("observations = %+v, want one success at first byte", obs)
	}
}

func TestRun_Stream_FirstChunkCarriesUsage(t *testing.T) {
	driver := &stubDriver{
		name: "groq",
		stream: scriptedStream(
			&providers.Chunk{ID: "c-1", Delta: "hi", FinishReason: providers.FinishReasonStop, Usage: &providers.TokenUsage{PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3}},
		),
	}
	quotas := &quotaRecorder{}
	p := newTestPipeline(stubDrivers{"groq": driver}, quotas, &statsRecorder{})

	req := chatRequest("llama")
	req.Stream = true
	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	out := p.Run(context.Background(), cand, req)

	if !out.Success() {
		t.Fatalf("Run() failed: %v", out.Err)
	}
	if got := drain(t, out.Stream); len(got) != 1 {
		t.Fatalf("chunks = %d, want 1", len(got))
	}
	if got := quotas.committed("groq"); got != 3 {
		t.Errorf("committed tokens = %d, want 3", got)
	}
}

func TestRun_Stream_MidStreamErrorForwarded(t *testing.T) {
	streamErr := &providers.StreamError{Provider: "groq", Message: "connection reset"}
	driver := &stubDriver{
		name: "groq",
		stream: scriptedStream(
			&providers.Chunk{ID: "c-1", Delta: "par"},
			&providers.Chunk{ID: "c-1", Delta: "tial"},
			&providers.Chunk{ID: "c-1", Err: streamErr},
		),
	}
	stats := &statsRecorder{}
	p := newTestPipeline(stubDrivers{"groq": driver}, &quotaRecorder{}, stats)

	req := chatRequest("llama")
	req.Stream = true
	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	out := p.Run(context.Background(), cand, req)

	if !out.Success() {
		t.Fatalf("Run() failed before first chunk: %v", out.Err)
	}
	chunks := drain(t, out.Stream)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3 (two deltas plus the error chunk)", len(chunks))
	}
	if chunks[2].Err == nil {
		t.Error("final chunk Err = nil, want forwarded stream error")
	}
	// The attempt already succeeded at first byte; a broken tail is not a
	// second failure.
	obs := stats.all()
	if len(obs) != 1 || !obs[0].success {
		t.Errorf("observations = %+v, want the single first-byte success", obs)
	}
}

func TestRun_Stream_ErrorChunkBeforeFirstByteFails(t *testing.T) {
	driver := &stubDriver{
		name: "groq",
		stream: scriptedStream(
			&providers.Chunk{ID: "c-1", Err: &providers.ProviderError{Provider: "groq", StatusCode: 401, Message: "bad key"}},
		),
	}
	p := newTestPipeline(stubDrivers{"groq": driver}, &quotaRecorder{}, &statsRecorder{})

	req := chatRequest("llama")
	req.Stream = true
	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	out := p.Run(context.Background(), cand, req)

	if out.Success() {
		t.Fatal("Run() succeeded, want auth failure")
	}
	if out.Class != providers.ErrorClassAuth {
		t.Errorf("Class = %s, want %s", out.Class, providers.ErrorClassAuth)
	}
}

func TestRun_Stream_TTFBTimeout(t *testing.T) {
	driver := &stubDriver{
		name: "groq",
		stream: func(ctx context.Context, _ *providers.Request) (<-chan *providers.Chunk, error) {
			ch := make(chan *providers.Chunk)
			go func() {
				<-ctx.Done()
				close(ch)
			}()
			return ch, nil
		},
	}
	stats := &statsRecorder{}
	p := newTestPipeline(stubDrivers{"groq": driver}, &quotaRecorder{}, stats)

	req := chatRequest("llama")
	req.Stream = true
	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	out := p.Run(context.Background(), cand, req)

	if out.Success() {
		t.Fatal("Run() succeeded, want first-byte timeout")
	}
	var timeoutErr *providers.TimeoutError
	if !errors.As(out.Err, &timeoutErr) {
		t.Fatalf("Err = %T (%v), want *TimeoutError", out.Err, out.Err)
	}
	if out.Class != providers.ErrorClassServer {
		t.Errorf("Class = %s, want %s", out.Class, providers.ErrorClassServer)
	}
	// Timeouts classify as transient, so the stall is attempted twice.
	if driver.streamCalls != 2 {
		t.Errorf("stream calls = %d, want 2", driver.streamCalls)
	}
}

func TestRun_Stream_RetriesOpenFailure(t *testing.T) {
	var calls int
	good := scriptedStream(
		&providers.Chunk{ID: "c-1", Delta: "ok", Usage: &providers.TokenUsage{TotalTokens: 1}},
	)
	driver := &stubDriver{name: "groq"}
	driver.stream = func(ctx context.Context, req *providers.Request) (<-chan *providers.Chunk, error) {
		calls++
		if calls == 1 {
			return nil, &providers.ProviderError{Provider: "groq", StatusCode: 503, Message: "overloaded"}
		}
		return good(ctx, req)
	}
	p := newTestPipeline(stubDrivers{"groq": driver}, &quotaRecorder{}, &statsRecorder{})

	req := chatRequest("llama")
	req.Stream = true
	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	out := p.Run(context.Background(), cand, req)

	if !out.Success() {
		t.Fatalf("Run() failed after stream retry: %v", out.Err)
	}
	if calls != 2 {
		t.Errorf("stream open calls = %d, want 2", calls)
	}
	drain(t, out.Stream)
}

func TestRun_Stream_ConsumerGoneStopsRelay(t *testing.T) {
	unblock := make(chan struct{})
	driver := &stubDriver{
		name: "groq",
		stream: func(ctx context.Context, _ *providers.Request) (<-chan *providers.Chunk, error) {
			ch := make(chan *providers.Chunk)
			go func() {
				defer close(ch)
				ch <- &providers.Chunk{ID: "c-1", Delta: "first"}
				// Block until the relay abandons us.
				select {
				case ch <- &providers.Chunk{ID: "c-1", Delta: "second"}:
				case <-ctx.Done():
				}
				close(unblock)
			}()
			return ch, nil
		},
	}
	p := newTestPipeline(stubDrivers{"groq": driver}, &quotaRecorder{}, &statsRecorder{})

	ctx, cancel := context.WithCancel(context.Background())
	req := chatRequest("llama")
	req.Stream = true
	cand := testCandidate("groq", "groq/llama-big", "llama-3.3-70b-versatile", routing.TierFree)
	out := p.Run(ctx, cand, req)

	if !out.Success() {
		t.Fatalf("Run() failed: %v", out.Err)
	}
	// Take the first chunk, then walk away.
	select {
	case <-out.Stream:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first chunk")
	}
	cancel()

	select {
	case <-unblock:
	case <-time.After(time.Second):
		t.Fatal("relay did not cancel the upstream after the consumer left")
	}
}
