package database

import "database/sql"

// ApplyPool copies the pool settings of opts onto db.
func ApplyPool(db *sql.DB, opts Options) {
	db.SetMaxOpenConns(int(opts.MaxConns))
	db.SetMaxIdleConns(int(opts.MinConns))
	db.SetConnMaxLifetime(opts.MaxConnLifetime)
	db.SetConnMaxIdleTime(opts.MaxConnIdleTime)
}

// SQLRows adapts *sql.Rows to Rows.
func SQLRows(rows *sql.Rows) Rows {
	return &sqlRows{rows: rows}
}

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool                 { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r *sqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqlRows) Close()                     { _ = r.rows.Close() }
func (r *sqlRows) Err() error                 { return r.rows.Err() }
