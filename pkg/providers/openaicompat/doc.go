// Package openaicompat implements the provider driver for OpenAI-compatible
// chat completion APIs.
//
// One driver covers every upstream that speaks the OpenAI wire format: Groq,
// OpenRouter, NVIDIA NIM, the HuggingFace inference router, and self-hosted
// gateways (vLLM, Ollama, LM Studio). The endpoint is the configured base URL
// plus /chat/completions; authentication defaults to a Bearer token and can
// be reshaped through quirks for providers with custom auth schemes.
//
// Recognized quirks:
//
//   - "auth_header": send the credential in this header instead of
//     Authorization (e.g. "x-api-key")
//   - "auth_prefix": prefix for the credential value; defaults to "Bearer "
//     for the Authorization header and to no prefix for custom headers
//   - "header.<Name>": send an extra literal header, e.g.
//     "header.HTTP-Referer" for OpenRouter attribution
//   - "stream_options": "off" suppresses the stream_options.include_usage
//     field for upstreams that reject it
package openaicompat
