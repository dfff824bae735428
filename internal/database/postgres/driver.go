// Package postgres is the PostgreSQL adapter backed by pgxpool.
//
// Usage:
//
//	md := connection.Metadata{Host: "localhost", Username: "app", Password: "secret", Database: "shop"}
//	d, err := postgres.New(ctx, md, database.DefaultOptions())
//	if err != nil { ... }
//	defer d.Close()
//
//	rows, err := d.Pool().Query(ctx, "SELECT id FROM orders")
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/database"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/logger"
)

const defaultPort = 5432

// Driver is a PostgreSQL implementation of database.DB.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

var _ database.DB = (*Driver)(nil)

// New builds a pool for md and pings it before returning.
func New(ctx context.Context, md connection.Metadata, opts database.Options) (*Driver, error) {
	poolCfg, endpoint, err := poolConfig(md, opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create connection pool", err)
	}

	d := &Driver{
		pool: pool,
		log:  logger.FromContext(ctx).ForAdapter("postgres", endpoint),
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "postgres unreachable", err)
	}

	d.log.Debug("connected")
	return d, nil
}

// poolConfig parses md into a pgxpool config. A URI is handed to pgx as-is;
// discrete fields become a key/value DSN.
func poolConfig(md connection.Metadata, opts database.Options) (*pgxpool.Config, string, error) {
	opts = opts.WithDefaults()

	target, err := md.Resolve("postgres", defaultPort)
	if err != nil {
		return nil, "", err
	}

	dsn := target.URL()
	if md.Kind() == connection.KindDiscrete {
		dsn = keyValueDSN(target, opts.SSLMode)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, "", errs.Wrap(errs.ErrKindInvalidInput, "invalid postgres dsn", err)
	}
	if target.Database != "" {
		poolCfg.ConnConfig.Database = target.Database
	}

	poolCfg.MaxConns = opts.MaxConns
	poolCfg.MinConns = opts.MinConns
	poolCfg.MaxConnLifetime = opts.MaxConnLifetime
	poolCfg.MaxConnIdleTime = opts.MaxConnIdleTime
	poolCfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout

	return poolCfg, target.Endpoint(), nil
}

// keyValueDSN renders the libpq keyword/value form, quoting every value.
func keyValueDSN(t connection.Target, sslMode string) string {
	pairs := []string{
		"host=" + quote(t.Host),
		fmt.Sprintf("port=%d", t.Port),
	}
	if t.Username != "" {
		pairs = append(pairs, "user="+quote(t.Username))
	}
	if t.Password != "" {
		pairs = append(pairs, "password="+quote(t.Password))
	}
	if t.Database != "" {
		pairs = append(pairs, "dbname="+quote(t.Database))
	}
	pairs = append(pairs, "sslmode="+quote(sslMode))
	return strings.Join(pairs, " ")
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Pool returns the native pool, or nil after Close.
func (d *Driver) Pool() *pgxpool.Pool {
	return d.pool
}

// Ping verifies the database is reachable by acquiring and releasing a connection.
func (d *Driver) Ping(ctx context.Context) error {
	if d.pool == nil {
		return errs.ErrNotConnected
	}
	return mapError(d.pool.Ping(ctx), "ping failed")
}

// Close drains the connection pool.
func (d *Driver) Close() error {
	if d.pool == nil {
		return errs.ErrNotConnected
	}
	d.pool.Close()
	d.pool = nil
	d.log.Debug("closed")
	return nil
}

// Query executes a SQL statement that returns multiple rows.
func (d *Driver) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	if d.pool == nil {
		return nil, errs.ErrNotConnected
	}
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgxRows{rows: rows}, nil
}

// --- pgx type wrappers ---

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Close()                 { r.rows.Close() }
func (r *pgxRows) Err() error             { return r.rows.Err() }

func (r *pgxRows) Columns() ([]string, error) {
	fields := r.rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	return cols, nil
}
