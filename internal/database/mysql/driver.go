// Package mysql is the MySQL adapter backed by database/sql and
// go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/koustreak/roubi/internal/connection"
	"github.com/koustreak/roubi/internal/database"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/logger"
)

const defaultPort = 3306

// Driver is a MySQL implementation of database.DB.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	db  *sql.DB
	log *logger.Logger
}

var _ database.DB = (*Driver)(nil)

// New opens a MySQL pool for md and pings it before returning.
func New(ctx context.Context, md connection.Metadata, opts database.Options) (*Driver, error) {
	opts = opts.WithDefaults()

	cfg, err := driverConfig(md, opts)
	if err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid mysql config", err)
	}
	db := sql.OpenDB(connector)
	database.ApplyPool(db, opts)

	d := &Driver{
		db:  db,
		log: logger.FromContext(ctx).ForAdapter("mysql", cfg.Addr),
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "mysql unreachable", err)
	}

	d.log.Debug("connected")
	return d, nil
}

// driverConfig builds the go-sql-driver config. A mysql:// URI is decomposed
// like discrete fields, keeping its query parameters; any other URI is taken
// as a native DSN.
func driverConfig(md connection.Metadata, opts database.Options) (*mysql.Config, error) {
	if md.Kind() == connection.KindURI {
		u, err := url.Parse(md.URI)
		if err != nil || u.Scheme != "mysql" {
			cfg, err := mysql.ParseDSN(md.URI)
			if err != nil {
				return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid mysql dsn", err)
			}
			if md.Database != "" {
				cfg.DBName = md.Database
			}
			return cfg, nil
		}
	}

	target, err := md.Resolve("mysql", defaultPort)
	if err != nil {
		return nil, err
	}

	cfg := mysql.NewConfig()
	cfg.User = target.Username
	cfg.Passwd = target.Password
	cfg.Net = "tcp"
	cfg.Addr = target.Endpoint()
	cfg.DBName = target.Database
	cfg.ParseTime = true
	cfg.Timeout = opts.ConnectTimeout

	if md.Kind() == connection.KindURI {
		u, _ := url.Parse(md.URI)
		for k, v := range u.Query() {
			if len(v) == 0 {
				continue
			}
			if k == "parseTime" {
				cfg.ParseTime, _ = strconv.ParseBool(v[0])
				continue
			}
			if cfg.Params == nil {
				cfg.Params = map[string]string{}
			}
			cfg.Params[k] = v[0]
		}
	}
	return cfg, nil
}

// DSN renders the data source name the driver connects with.
func DSN(md connection.Metadata, opts database.Options) (string, error) {
	cfg, err := driverConfig(md, opts.WithDefaults())
	if err != nil {
		return "", err
	}
	return cfg.FormatDSN(), nil
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
