// Package storage persists announcement log records.
//
// Drivers:
//   - "file": a single JSON array, rewritten on every append
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
package storage
