// Package health tracks per-provider availability with class-based
// cooldowns.
//
// Failures are recorded with their error class; each class maps to a
// cooldown ceiling (rate limits 60s, auth failures 1h, server errors 30s)
// during which the provider is skipped by routing. Client errors never
// penalize a provider. When an upstream supplies a Retry-After larger than
// the table value, the hint wins.
//
// A provider whose cooldown has lapsed becomes eligible again while still
// marked unhealthy; the first successful request afterwards resets it. The
// store fails open everywhere: an unreachable backend yields healthy
// reads and silently dropped writes, because shedding load over a
// bookkeeping failure would be worse than risking one more upstream 429.
package health
