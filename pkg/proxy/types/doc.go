// Package types defines the OpenAI-compatible wire format: request and
// response bodies for chat completions, SSE stream frames, the model list,
// and the error envelope. These shapes match what OpenAI SDKs produce and
// parse; gateway extensions (preferred_provider, the meridian attribution
// block) are additive fields standard clients ignore.
package types
