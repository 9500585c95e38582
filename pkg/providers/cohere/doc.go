// Package cohere implements the provider driver for Cohere's v2 chat API.
//
// Cohere departs from the OpenAI wire format in three ways this driver
// absorbs: assistant content arrives as a list of typed blocks rather than a
// single string, finish reasons are upper-case vendor terms (COMPLETE,
// MAX_TOKENS, TOOL_CALL), and the event stream is typed per frame
// (message-start, content-delta, message-end) instead of uniform chunks.
// Token usage is read from billed_units, falling back to raw token counts
// when billing figures are absent.
package cohere
