// Package schema lists tables and describes their columns on any
// database.DB, using the catalog of the engine behind it.
//
// Usage:
//
//	cat, err := schema.For(database.DriverPostgres, db)
//	if err != nil { ... }
//	tables, err := cat.ListTables(ctx, "public")
//	info, err := cat.DescribeTable(ctx, "public", "users")
package schema

import (
	"context"
	"fmt"
	"strconv"

	"github.com/koustreak/roubi/internal/database"
	"github.com/koustreak/roubi/internal/errs"
)

// ColumnInfo describes a single column in a table.
type ColumnInfo struct {
	Name         string  `json:"name" yaml:"name"`
	DataType     string  `json:"dataType" yaml:"dataType"`
	IsNullable   bool    `json:"isNullable" yaml:"isNullable"`
	IsPrimaryKey bool    `json:"isPrimaryKey" yaml:"isPrimaryKey"`
	DefaultValue *string `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

// TableInfo describes a table and its columns.
type TableInfo struct {
	Schema  string       `json:"schema,omitempty" yaml:"schema,omitempty"`
	Name    string       `json:"name" yaml:"name"`
	Columns []ColumnInfo `json:"columns" yaml:"columns"`
}

// Catalog reads table metadata through one connection.
type Catalog struct {
	db      database.DB
	dialect dialect
}

// For returns the catalog for driver over db.
func For(driver database.Driver, db database.DB) (*Catalog, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("no catalog for driver %q", driver))
	}
	return &Catalog{db: db, dialect: d}, nil
}

// ListTables returns the base tables of namespace in name order. An empty
// namespace is the connection's default (public, main, or the current
// database).
func (c *Catalog) ListTables(ctx context.Context, namespace string) ([]string, error) {
	rows, err := c.query(ctx, c.dialect.tables, c.dialect.args(namespace)...)
	if err != nil {
		return nil, err
	}

	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, asString(row["table_name"]))
	}
	return tables, nil
}

// DescribeTable returns the columns of table in declaration order. A table
// with no visible columns is reported as not found.
func (c *Catalog) DescribeTable(ctx context.Context, namespace, table string) (*TableInfo, error) {
	rows, err := c.query(ctx, c.dialect.columns, c.dialect.args(namespace, table)...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("table %q not found", table))
	}

	info := &TableInfo{Schema: namespace, Name: table, Columns: make([]ColumnInfo, 0, len(rows))}
	for _, row := range rows {
		col := ColumnInfo{
			Name:         asString(row["name"]),
			DataType:     asString(row["data_type"]),
			IsNullable:   asBool(row["is_nullable"]),
			IsPrimaryKey: asBool(row["is_primary_key"]),
		}
		if v := row["default_value"]; v != nil {
			if s := asString(v); s != "" {
				col.DefaultValue = &s
			}
		}
		info.Columns = append(info.Columns, col)
	}
	return info, nil
}

func (c *Catalog) query(ctx context.Context, q string, args ...any) ([]map[string]any, error) {
	rows, err := c.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return database.ScanRows(rows)
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

// asBool accepts the encodings engines use for a boolean expression.
func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case int32:
		return b != 0
	case uint8:
		return b != 0
	case []byte, string:
		n, err := strconv.ParseInt(asString(b), 10, 64)
		if err == nil {
			return n != 0
		}
		ok, _ := strconv.ParseBool(asString(b))
		return ok
	default:
		return false
	}
}
