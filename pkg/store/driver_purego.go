//go:build !cgo

package store

// autoSQLiteDriver is the driver picked by "auto" selection. Without cgo
// the pure-Go modernc.org/sqlite driver serves.
const autoSQLiteDriver = "sqlite"
