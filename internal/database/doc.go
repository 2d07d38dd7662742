// Package database opens the journal backends and creates their schema.
//
// Two backends are supported:
//   - PostgreSQL via a pgx connection pool
//   - SQLite via modernc.org/sqlite, for single-host deployments
//
// Both hold the same two tables: vi_events (one row per VI event that
// changed or refreshed an instrument) and ticks (one row per forwarded
// tick).
package database
