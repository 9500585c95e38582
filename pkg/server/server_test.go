package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tycho-hq/meridian/pkg/catalog"
	"tycho-hq/meridian/pkg/config"
	"tycho-hq/meridian/pkg/gateway"
	"tycho-hq/meridian/pkg/health"
	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/quota"
	"tycho-hq/meridian/pkg/telemetry/metrics"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"alpha": {Kind: "openai-compatible", CredentialRef: "sk-test", Free: true},
		},
		CanonicalModels: []config.CanonicalModelConfig{
			{
				ID:         "alpha/chat",
				ProviderID: "alpha",
				ModelPath:  "chat-large",
				Capabilities: config.CapabilitiesConfig{
					Streaming: true,
				},
			},
		},
		Aliases: map[string][]string{
			"chat": {"alpha/chat"},
		},
	}

	cat, err := catalog.New(cfg)
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	return cat
}

type stubFrontend struct {
	result *gateway.Result
	err    error
	calls  int
}

func (s *stubFrontend) Run(_ context.Context, _ *providers.Request) (*gateway.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubHealths struct{}

func (stubHealths) Get(_ context.Context, _ string) health.Entry {
	return health.Entry{State: health.StateHealthy}
}

type stubQuotas struct{}

func (stubQuotas) Snapshot(_ context.Context, _ string) quota.Entry {
	return quota.Entry{Requests: 3, RPMLimit: 30}
}

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Listen:          "127.0.0.1:0",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		IdleTimeout:     5 * time.Second,
		ShutdownTimeout: time.Second,
		MaxHeaderBytes:  1 << 20,
	}
}

func newTestServer(t *testing.T, frontend *stubFrontend) *Server {
	t.Helper()
	return NewServer(testServerConfig(), Deps{
		Frontend: frontend,
		Catalogs: catalog.NewHandle(testCatalog(t)),
		Healths:  stubHealths{},
		Quotas:   stubQuotas{},
	})
}

func okResult() *gateway.Result {
	return &gateway.Result{
		Response: &providers.Response{
			ID:           "resp-1",
			Content:      "hello there",
			FinishReason: "stop",
			Usage:        providers.TokenUsage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12},
		},
		Metadata: gateway.Metadata{
			Provider: "alpha",
			Model:    "alpha/chat",
			Tier:     "free",
			Attempts: 1,
		},
	}
}

func TestHandler_Routes(t *testing.T) {
	srv := newTestServer(t, &stubFrontend{result: okResult()})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"liveness", http.MethodGet, "/health", http.StatusOK},
		{"readiness", http.MethodGet, "/ready", http.StatusOK},
		{"provider health", http.MethodGet, "/health/providers", http.StatusOK},
		{"models", http.MethodGet, "/v1/models", http.StatusOK},
		{"chat wrong method", http.MethodGet, "/v1/chat/completions", http.StatusMethodNotAllowed},
		{"unknown path", http.MethodGet, "/nope", http.StatusNotFound},
		{"metrics absent without collector", http.MethodGet, "/metrics", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, nil)
			if err != nil {
				t.Fatalf("NewRequest() error = %v", err)
			}
			resp, err := ts.Client().Do(req)
			if err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestHandler_ChatCompletion(t *testing.T) {
	frontend := &stubFrontend{result: okResult()}
	srv := newTestServer(t, frontend)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body := `{"model": "chat", "messages": [{"role": "user", "content": "hi"}]}`
	resp, err := ts.Client().Post(ts.URL+"/v1/chat/completions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if frontend.calls != 1 {
		t.Errorf("frontend calls = %d, want 1", frontend.calls)
	}
	if got := resp.Header.Get("X-Meridian-Provider"); got != "alpha" {
		t.Errorf("X-Meridian-Provider = %q, want %q", got, "alpha")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	var wire struct {
		Object  string `json:"object"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if wire.Object != "chat.completion" {
		t.Errorf("object = %q, want %q", wire.Object, "chat.completion")
	}
	if wire.Model != "chat" {
		t.Errorf("model = %q, want requested model %q", wire.Model, "chat")
	}
	if len(wire.Choices) != 1 || wire.Choices[0].Message.Content != "hello there" {
		t.Errorf("choices = %+v, want single choice with stub content", wire.Choices)
	}
}

func TestHandler_MetricsRoute(t *testing.T) {
	srv := newTestServer(t, &stubFrontend{result: okResult()})
	srv.deps.Metrics = metrics.NewCollector(config.MetricsConfig{Namespace: "test"}, nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	srv.deps.Metrics.RecordTierSelected("free")

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(buf.String(), "test_tier_selections_total") {
		t.Error("exposition missing test_tier_selections_total")
	}
}

func TestHandler_MetricsRouteDisabled(t *testing.T) {
	srv := newTestServer(t, &stubFrontend{result: okResult()})
	disabled := false
	srv.deps.Metrics = metrics.NewCollector(config.MetricsConfig{Enabled: &disabled}, nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d when metrics disabled", resp.StatusCode, http.StatusNotFound)
	}
}

func TestHandler_CORSPreflight(t *testing.T) {
	srv := newTestServer(t, &stubFrontend{result: okResult()})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/v1/chat/completions", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("Access-Control-Allow-Origin missing on preflight")
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Errorf("Access-Control-Allow-Methods = %q, want POST included", got)
	}
	exposed := resp.Header.Get("Access-Control-Expose-Headers")
	if !strings.Contains(exposed, "X-Meridian-Provider") {
		t.Errorf("Access-Control-Expose-Headers = %q, want attribution headers exposed", exposed)
	}
}

func TestConfigureTLS(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	for _, f := range []string{certFile, keyFile} {
		if err := os.WriteFile(f, []byte("placeholder"), 0o600); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", f, err)
		}
	}

	tests := []struct {
		name           string
		tls            config.TLSConfig
		wantErr        bool
		wantMinVersion uint16
	}{
		{
			name:           "default min version is 1.3",
			tls:            config.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile},
			wantMinVersion: tls.VersionTLS13,
		},
		{
			name:           "explicit 1.3",
			tls:            config.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, MinVersion: "1.3"},
			wantMinVersion: tls.VersionTLS13,
		},
		{
			name:           "explicit 1.2",
			tls:            config.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, MinVersion: "1.2"},
			wantMinVersion: tls.VersionTLS12,
		},
		{
			name:    "unsupported version",
			tls:     config.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, MinVersion: "1.0"},
			wantErr: true,
		},
		{
			name:    "missing cert file",
			tls:     config.TLSConfig{Enabled: true, KeyFile: keyFile},
			wantErr: true,
		},
		{
			name:    "missing key file",
			tls:     config.TLSConfig{Enabled: true, CertFile: certFile},
			wantErr: true,
		},
		{
			name:    "cert file does not exist",
			tls:     config.TLSConfig{Enabled: true, CertFile: filepath.Join(dir, "absent.pem"), KeyFile: keyFile},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testServerConfig()
			cfg.TLS = tt.tls
			srv := NewServer(cfg, Deps{})

			got, err := srv.configureTLS()
			if tt.wantErr {
				if err == nil {
					t.Fatal("configureTLS() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("configureTLS() error = %v", err)
			}
			if got.MinVersion != tt.wantMinVersion {
				t.Errorf("MinVersion = %#x, want %#x", got.MinVersion, tt.wantMinVersion)
			}
			if tt.wantMinVersion == tls.VersionTLS12 && len(got.CipherSuites) == 0 {
				t.Error("CipherSuites empty, want explicit list for TLS 1.2")
			}
		})
	}
}

func TestReadiness_NoCatalog(t *testing.T) {
	srv := NewServer(testServerConfig(), Deps{
		Frontend: &stubFrontend{},
		Catalogs: catalog.NewHandle(nil),
		Healths:  stubHealths{},
		Quotas:   stubQuotas{},
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/ready")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d before a catalog is loaded", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestServerLifecycle(t *testing.T) {
	srv := newTestServer(t, &stubFrontend{result: okResult()})
	if srv.IsRunning() {
		t.Fatal("IsRunning() = true before Start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	deadline := time.After(2 * time.Second)
	for !srv.IsRunning() {
		select {
		case <-deadline:
			t.Fatal("server did not start within 2s")
		case err := <-done:
			t.Fatalf("Start() returned early: %v", err)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down within 2s")
	}

	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}

func TestShutdown_BeforeStart(t *testing.T) {
	srv := newTestServer(t, &stubFrontend{})
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() before start error = %v", err)
	}
}
