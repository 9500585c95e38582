// Package failover executes routed requests with tiered fallback.
//
// The Pipeline owns a single attempt: it reserves a slot in the provider's
// request budget, invokes the driver under the attempt and first-byte
// timeouts, retries transient upstream failures exactly once, and commits
// reported token usage. The Orchestrator owns the request: it walks the
// routing tiers in order, recomputes candidates at each tier boundary, and
// returns the first success. Failed attempts are recorded against provider
// health so subsequent routing passes in the same request already see them.
//
// Streaming requests commit to a provider at the first chunk. After that
// point a broken stream is reported to the consumer through an error chunk
// and the request is over; the orchestrator never restarts a stream on a
// different provider.
package failover
