// Package gateway exposes the single entry point the transport layer
// calls for chat completions.
//
// The Frontend validates the canonical request, pins one catalog
// generation for the request's lifetime, settles streaming against the
// resolved models (downgrading when nothing behind the selector can
// stream), attaches a token estimate, and hands off to the fallback
// orchestrator. It converts nothing on the success path; the transport
// adapter decides how routing metadata reaches the client.
package gateway
