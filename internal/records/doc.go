// Package records is the primary record store: one row per audio asset,
// queryable by entry, level, level id, speaker and dialect.
//
// The store speaks database/sql and runs against either the embedded SQLite
// driver (modernc.org/sqlite) or PostgreSQL through pgx. Queries are written
// once with "?" placeholders and rebound for PostgreSQL. Failures that mean
// the database could not be reached are tagged with audio.ErrConnectivity so
// the index cache can tell "store unreachable" apart from "not found".
package records
