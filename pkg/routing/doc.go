// Package routing turns a model selector into tier-keyed ordered
// candidate lists.
//
// Four tiers, walked strictly in order by the failover orchestrator:
// preferred (the request's pinned provider), free, paid, and emergency.
// Tiers 1-3 drop candidates that are health-ineligible or whose provider
// has visibly spent its request budget; the emergency tier keeps them
// all, ordered by how soon they are likely to recover, as the last
// resort before the request fails.
//
// Within free and paid, candidates are ordered by a weighted penalty of
// normalized cost, normalized median latency, and recent failure rate.
// Weights come from configuration; the default prefers cheap over fast
// over reliable, which for a free-first gateway mostly means free models
// sort by speed. The router is read-only: it consumes health, quota, and
// latency snapshots but never writes them.
package routing
