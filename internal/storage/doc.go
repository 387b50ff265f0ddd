// Package storage persists monitored endpoints and subscribers in a
// relational database.
//
// Two drivers are supported:
//   - "sqlite": a local database file (modernc.org/sqlite, pure Go)
//   - "postgres": a PostgreSQL server (github.com/lib/pq)
//
// The schema is created on open. Timestamps are stored as unix seconds.
package storage
