// Package proxy adapts the gateway core to the OpenAI HTTP surface.
//
// It owns the wire conversions in both directions: parsing and validating
// inbound chat completion bodies, converting them to the canonical request
// form, rendering canonical responses and stream chunks back to OpenAI
// shapes, and mapping gateway errors onto the OpenAI error envelope with
// the right HTTP status. Routing attribution travels as X-Meridian-*
// response headers and, for streams, as a terminal metadata frame before
// the [DONE] marker.
//
// Handlers live in the handlers subpackage; HTTP middleware (request ids,
// logging, recovery, CORS, timeouts) in middleware.
package proxy
