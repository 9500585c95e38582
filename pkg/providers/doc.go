// Package providers defines the driver contract for upstream LLM providers.
//
// # Overview
//
// The providers package normalizes heterogeneous upstream APIs behind one
// interface. A Driver accepts a canonical Request, performs exactly one
// upstream exchange, and returns either a canonical Response or a stream of
// Chunks. Everything above this layer (routing, health, quota, retries)
// works purely in canonical terms.
//
// # Architecture
//
// The package is organized into three layers:
//
//  1. Canonical Types - Request, Response, Chunk, and the error taxonomy
//  2. Base HTTP Client - Shared transport with connection pooling and
//     status classification
//  3. Driver Registry - Holds constructed drivers keyed by provider id
//
// Concrete adapters live in subpackages (openaicompat, cohere, cloudflare,
// pollinations, aihorde) and are registered through factories.
//
// # Basic Usage
//
//	driver, err := registry.Driver("groq")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	req := &providers.Request{
//	    Model: "llama-3.3-70b-versatile",
//	    Messages: []providers.Message{
//	        {Role: providers.RoleUser, Content: "Hello!"},
//	    },
//	}
//
//	resp, err := driver.Complete(ctx, req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.Content)
//
// # Streaming
//
//	chunks, err := driver.Stream(ctx, req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for chunk := range chunks {
//	    if chunk.Err != nil {
//	        log.Fatal(chunk.Err)
//	    }
//	    fmt.Print(chunk.Delta)
//	}
//
// A stream is a finite sequence of content chunks followed by a terminal
// chunk carrying Usage. The channel is always closed, even on failure.
//
// # Error Handling
//
// Every driver failure maps onto a small closed taxonomy via Classify:
//
//   - ErrorClassRateLimited: HTTP 429, possibly with a Retry-After hint
//   - ErrorClassAuth: HTTP 401/403, bad or revoked credentials
//   - ErrorClassClient: HTTP 400/404/422, the request itself is at fault
//   - ErrorClassServer: HTTP 5xx, timeouts, and anything unrecognized
//
// Callers branch on the class, not on concrete error types:
//
//	resp, err := driver.Complete(ctx, req)
//	if err != nil {
//	    switch providers.Classify(err) {
//	    case providers.ErrorClassRateLimited:
//	        // back off, honor RetryAfterHint(err)
//	    case providers.ErrorClassServer:
//	        // transient, a retry may succeed
//	    }
//	}
//
// Context cancellation is never classified: Do returns ctx.Err() unwrapped
// so callers can tell the caller hanging up apart from provider failure.
//
// # Thread Safety
//
// Drivers, the registry, and HTTPClient are safe for concurrent use from
// multiple goroutines.
package providers
