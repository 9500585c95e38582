// Package aihorde implements the provider driver for the AI Horde
// crowdsourced inference network.
//
// The Horde is asynchronous: a generation is submitted with
// POST /api/v2/generate/text/async and then polled at
// GET /api/v2/generate/text/status/{id} until done. The driver paces its
// polls with a rate limiter so a burst of concurrent requests stays polite,
// and cancels the remote job when the caller gives up.
//
// Chat structure, token accounting and streaming do not exist upstream: the
// message list is flattened into a single instruct prompt, usage is
// estimated from text length, and Stream delivers the whole completion as
// one chunk once the job finishes.
package aihorde
