// Package database manages PostgreSQL connections for cachedb.
//
// Two kinds of connection are used:
//   - a dedicated pgx.Conn owned by the persistence worker (writes)
//   - a pgxpool.Pool shared by the read path
//
// CreateDatabase bootstraps the target database over database/sql.
package database
