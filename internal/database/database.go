// Package database is the contract shared by the relational and columnar
// adapters (postgres, mysql, sqlite, clickhouse).
//
// Adapters are connection holders: they build a pool from
// connection.Metadata, verify it with a ping and hand out the native handle.
// Query is a thin read path used by the CLI; anything richer goes through
// the native handle.
package database

import "context"

// Driver identifies the database engine.
type Driver string

const (
	DriverPostgres   Driver = "postgres"
	DriverMySQL      Driver = "mysql"
	DriverSQLite     Driver = "sqlite"
	DriverClickHouse Driver = "clickhouse"
)

// DB is implemented by every relational and columnar adapter.
type DB interface {
	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// Close releases the pool. Calling it twice returns errs.ErrNotConnected.
	Close() error
}

// Rows is an abstraction over a result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close()
	Err() error
}
