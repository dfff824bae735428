// Package sqlite is the embedded SQLite adapter backed by go-sqlite3.
//
// connection.Metadata.Database is the file path (":memory:" for a private
// in-memory database). A URI, when set, is handed to the driver untouched,
// so "file:" URIs with query options work.
package sqlite

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3" // register "sqlite3" driver

	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/database"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/logger"
)

const memory = ":memory:"

// Driver is a SQLite implementation of database.DB.
type Driver struct {
	db  *sql.DB
	log *logger.Logger
}

var _ database.DB = (*Driver)(nil)

// New opens the database file and pings it before returning.
func New(ctx context.Context, md connection.Metadata, opts database.Options) (*Driver, error) {
	opts = opts.WithDefaults()

	path, err := dataSource(md)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "sqlite open failed", err)
	}
	database.ApplyPool(db, opts)
	if path == memory {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	d := &Driver{
		db:  db,
		log: logger.FromContext(ctx).ForAdapter("sqlite", path),
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "sqlite unreachable", err)
	}

	d.log.Debug("connected")
	return d, nil
}

func dataSource(md connection.Metadata) (string, error) {
	if md.Kind() == connection.KindURI {
		return md.URI, nil
	}
	if md.Database == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "sqlite needs a database path")
	}
	return md.Database, nil
}

// DB returns the native handle, or nil after Close.
func (d *Driver) DB() *sql.DB {
	return d.db
}

func (d *Driver) Ping(ctx context.Context) error {
	if d.db == nil {
		return errs.ErrNotConnected
	}
	return mapError(d.db.PingContext(ctx), "ping failed")
}

func (d *Driver) Close() error {
	if d.db == nil {
		return errs.ErrNotConnected
	}
	err := d.db.Close()
	d.db = nil
	d.log.Debug("closed")
	return mapError(err, "close failed")
}

func (d *Driver) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	if d.db == nil {
		return nil, errs.ErrNotConnected
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return database.SQLRows(rows), nil
}
