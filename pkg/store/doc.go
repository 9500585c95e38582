// Package store provides the key-value persistence layer behind the
// health and quota trackers.
//
// Two backends implement the Store interface: MemoryStore for
// single-instance deployments where state may die with the process, and
// SQLiteStore for deployments that want health cooldowns and quota windows
// to survive restarts or be shared by co-located replicas. The sqlite
// backend runs in WAL mode and supports both the cgo and the pure-Go
// driver; "auto" selection follows the build.
//
// Entries carry a TTL. Reads treat expired entries as absent immediately;
// the Sweeper physically removes them on a cron schedule.
package store
