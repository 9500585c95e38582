package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// maxErrorBodySize bounds how much of an upstream error body is read
	// into error messages.
	maxErrorBodySize = 4096

	// sseInitialBufferSize and sseMaxBufferSize size the line scanner for
	// event streams; single SSE lines can carry large deltas.
	sseInitialBufferSize = 64 * 1024
	sseMaxBufferSize     = 1024 * 1024
)

// HTTPClient is the shared HTTP layer for driver implementations. It owns a
// pooled transport and maps upstream failures into the error taxonomy.
//
// Unlike a general-purpose client it deliberately carries no retry loop and
// no health state: retries are the resilience pipeline's job and health is
// the health store's. A driver built on HTTPClient performs exactly one
// upstream exchange per call.
type HTTPClient struct {
	config DriverConfig
	client *http.Client
}

// NewHTTPClient creates the shared HTTP layer for one provider.
//
// The transport uses ResponseHeaderTimeout rather than an overall client
// timeout so streaming bodies can outlive any fixed deadline; non-streaming
// deadlines arrive via the request context.
func NewHTTPClient(config DriverConfig) *HTTPClient {
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = 90 * time.Second
	}
	if config.ResponseHeaderTimeout == 0 {
		config.ResponseHeaderTimeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
	}

	return &HTTPClient{
		config: config,
		client: &http.Client{Transport: transport},
	}
}

// ProviderID returns the provider id this client serves.
func (c *HTTPClient) ProviderID() string {
	return c.config.ProviderID
}

// Config returns the driver configuration.
func (c *HTTPClient) Config() DriverConfig {
	return c.config
}

// Do performs a single HTTP exchange. Non-2xx statuses are consumed and
// returned as classified errors; on success the caller owns resp.Body.
func (c *HTTPClient) Do(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.Debug("sending request to provider",
		"provider", c.config.ProviderID,
		"method", method,
		"url", url,
	)

	resp, err := c.client.Do(req)
	if err != nil {
		// Return context errors unwrapped so callers can tell caller
		// cancellation apart from provider failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ProviderError{
			Provider: c.config.ProviderID,
			Message:  "request failed",
			Cause:    err,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &AuthError{
			Provider: c.config.ProviderID,
			Message:  string(errorBody),
		}

	case http.StatusTooManyRequests:
		return nil, &RateLimitError{
			Provider:   c.config.ProviderID,
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    string(errorBody),
		}

	default:
		return nil, &ProviderError{
			Provider:   c.config.ProviderID,
			StatusCode: resp.StatusCode,
			Message:    string(errorBody),
		}
	}
}

// DoJSON performs a JSON exchange, decoding the response into respBody.
func (c *HTTPClient) DoJSON(ctx context.Context, method, url string, reqBody interface{}, respBody interface{}, headers map[string]string) error {
	var bodyBytes []byte
	var err error
	if reqBody != nil {
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := c.Do(ctx, method, url, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ParseError{
			Provider: c.config.ProviderID,
			Cause:    fmt.Errorf("failed to read response: %w", err),
		}
	}

	if respBody != nil && len(responseBytes) > 0 {
		if err := json.Unmarshal(responseBytes, respBody); err != nil {
			return &ParseError{
				Provider:    c.config.ProviderID,
				RawResponse: string(responseBytes),
				Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
			}
		}
	}

	return nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// SSEReader reads the data payloads of a Server-Sent Events stream.
// Non-data lines (comments, event names, ids) are skipped.
type SSEReader struct {
	scanner *bufio.Scanner
}

// NewSSEReader wraps a response body in an SSE payload reader.
func NewSSEReader(r io.Reader) *SSEReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, sseInitialBufferSize), sseMaxBufferSize)
	return &SSEReader{scanner: scanner}
}

// Next returns the next data payload. It returns io.EOF when the stream
// ends cleanly and the scanner's error when the connection breaks.
func (s *SSEReader) Next() (string, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			continue
		}

		// Both "data: x" and "data:x" are valid per the SSE spec.
		var data string
		switch {
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		default:
			continue
		}

		return data, nil
	}

	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// ParseRetryAfter parses a Retry-After header value. It supports both
// delay-seconds and HTTP-date formats; unparseable values yield 0.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
