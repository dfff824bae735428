// Package clickhouse is the columnar adapter backed by clickhouse-go's native
// protocol client.
package clickhouse

import (
	"context"
	"reflect"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/database"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/logger"
)

const defaultPort = 9000

// Driver is a ClickHouse implementation of database.DB.
type Driver struct {
	conn driver.Conn
	log  *logger.Logger
}

var _ database.DB = (*Driver)(nil)

// New opens a native connection for md and pings it before returning.
func New(ctx context.Context, md connection.Metadata, opts database.Options) (*Driver, error) {
	chOpts, err := clientOptions(md, opts)
	if err != nil {
		return nil, err
	}

	conn, err := ch.Open(chOpts)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "clickhouse client setup failed", err)
	}

	d := &Driver{
		conn: conn,
		log:  logger.FromContext(ctx).ForAdapter("clickhouse", chOpts.Addr[0]),
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "clickhouse unreachable", err)
	}

	d.log.Debug("connected")
	return d, nil
}

// clientOptions resolves md into clickhouse options. A URI goes through
// clickhouse.ParseDSN; pool settings from opts apply to both variants.
func clientOptions(md connection.Metadata, opts database.Options) (*ch.Options, error) {
	opts = opts.WithDefaults()

	var chOpts *ch.Options
	if md.Kind() == connection.KindURI {
		parsed, err := ch.ParseDSN(md.URI)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid clickhouse dsn", err)
		}
		if md.Database != "" {
			parsed.Auth.Database = md.Database
		}
		chOpts = parsed
	} else {
		target, err := md.Resolve("clickhouse", defaultPort)
		if err != nil {
			return nil, err
		}
		chOpts = &ch.Options{
			Addr: []string{target.Endpoint()},
			Auth: ch.Auth{
				Database: target.Database,
				Username: target.Username,
				Password: target.Password,
			},
		}
	}
	if len(chOpts.Addr) == 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "clickhouse address missing")
	}

	chOpts.DialTimeout = opts.ConnectTimeout
	chOpts.MaxOpenConns = int(opts.MaxConns)
	chOpts.MaxIdleConns = int(opts.MinConns)
	chOpts.ConnMaxLifetime = opts.MaxConnLifetime
	return chOpts, nil
}

// Conn returns the native connection, or nil after Close.
func (d *Driver) Conn() driver.Conn {
	return d.conn
}

func (d *Driver) Ping(ctx context.Context) error {
	if d.conn == nil {
		return errs.ErrNotConnected
	}
	return mapError(d.conn.Ping(ctx), "ping failed")
}

func (d *Driver) Close() error {
	if d.conn == nil {
		return errs.ErrNotConnected
	}
	err := d.conn.Close()
	d.conn = nil
	d.log.Debug("closed")
	return mapError(err, "close failed")
}

func (d *Driver) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	if d.conn == nil {
		return nil, errs.ErrNotConnected
	}
	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &chRows{rows: rows}, nil
}

// nativeRows is the part of driver.Rows chRows relies on.
type nativeRows interface {
	Next() bool
	Scan(dest ...any) error
	ColumnTypes() []driver.ColumnType
	Columns() []string
	Close() error
	Err() error
}

// chRows adapts driver.Rows. The native client refuses *any destinations,
// so those are scanned into a value of the column's scan type first.
type chRows struct {
	rows nativeRows
}

func (r *chRows) Next() bool                 { return r.rows.Next() }
func (r *chRows) Columns() ([]string, error) { return r.rows.Columns(), nil }
func (r *chRows) Close()                     { _ = r.rows.Close() }
func (r *chRows) Err() error                 { return r.rows.Err() }

func (r *chRows) Scan(dest ...any) error {
	types := r.rows.ColumnTypes()
	holders := make([]any, len(dest))
	for i, d := range dest {
		if _, ok := d.(*any); ok && i < len(types) {
			holders[i] = reflect.New(types[i].ScanType()).Interface()
			continue
		}
		holders[i] = d
	}

	if err := r.rows.Scan(holders...); err != nil {
		return mapError(err, "scan failed")
	}

	for i, d := range dest {
		if p, ok := d.(*any); ok && i < len(types) {
			*p = reflect.ValueOf(holders[i]).Elem().Interface()
		}
	}
	return nil
}
