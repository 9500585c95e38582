//go:build cgo

package store

// autoSQLiteDriver is the driver picked by "auto" selection. A cgo build
// gets github.com/mattn/go-sqlite3.
const autoSQLiteDriver = "sqlite3"
