// Package sqlite is the SQLite sink, built on database/sql and the pure-Go
// modernc.org/sqlite driver. Inserts and deletes run as one prepared
// statement per row inside a transaction per batch.
package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a file path or URI, e.g. "rowcore.db" or
	// "file:rowcore.db?cache=shared".
	DSN string

	// Table is the target table. "main.events" style names are accepted.
	Table string

	// Columns is the ordered list of destination columns.
	Columns []string
}
