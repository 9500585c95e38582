// Package cloudflare implements the provider driver for Cloudflare
// Workers AI.
//
// Workers AI is account-scoped: every call goes to
// /client/v4/accounts/{account_id}/ai/run/{model}, so the driver requires an
// account_id quirk and splices the model into the URL per request. Responses
// arrive in Cloudflare's {result, success, errors} envelope rather than an
// OpenAI body, and the result itself is either a {response, usage} object or
// a bare string depending on the model family.
//
// The envelope carries no finish reason. Completions report stop; streams
// synthesize a final stop chunk when the [DONE] sentinel arrives without one.
package cloudflare
