// Package pollinations implements the provider driver for the Pollinations
// text API.
//
// Pollinations speaks the OpenAI chat completions format at a fixed
// endpoint and works without credentials, so the driver is a thin wrapper
// over the openaicompat driver: it fills in the endpoint, tolerates an
// empty credential, and turns stream_options off since the free tier
// rejects it. A token can still be configured for the higher rate tiers.
package pollinations
