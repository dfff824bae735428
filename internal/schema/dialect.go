package schema

import "github.com/koustreak/roubi/internal/database"

// dialect holds one engine's catalog queries. Both queries alias their
// columns to the same names so DescribeTable reads every engine alike.
type dialect struct {
	tables  string
	columns string

	// defaultNamespace replaces an empty namespace before binding; engines
	// that resolve it server side leave it empty.
	defaultNamespace string
}

// args binds namespace (defaulted) followed by the remaining values.
func (d dialect) args(namespace string, rest ...string) []any {
	if namespace == "" {
		namespace = d.defaultNamespace
	}
	out := []any{namespace}
	for _, r := range rest {
		out = append(out, r)
	}
	return out
}

var dialects = map[database.Driver]dialect{
	database.DriverPostgres: {
		defaultNamespace: "public",
		tables: `
			SELECT table_name
			FROM information_schema.tables
			WHERE table_schema = $1
			  AND table_type = 'BASE TABLE'
			ORDER BY table_name`,
		columns: `
			SELECT
				c.column_name                  AS name,
				c.data_type                    AS data_type,
				c.is_nullable = 'YES'          AS is_nullable,
				c.column_default               AS default_value,
				EXISTS (
					SELECT 1
					FROM information_schema.table_constraints tc
					JOIN information_schema.key_column_usage kcu
						ON tc.constraint_name = kcu.constraint_name
						AND tc.table_schema = kcu.table_schema
					WHERE tc.constraint_type = 'PRIMARY KEY'
					  AND tc.table_schema = c.table_schema
					  AND tc.table_name = c.table_name
					  AND kcu.column_name = c.column_name
				)                              AS is_primary_key
			FROM information_schema.columns c
			WHERE c.table_schema = $1 AND c.table_name = $2
			ORDER BY c.ordinal_position`,
	},
	database.DriverMySQL: {
		tables: `
			SELECT TABLE_NAME AS table_name
			FROM information_schema.TABLES
			WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
			  AND TABLE_TYPE = 'BASE TABLE'
			ORDER BY TABLE_NAME`,
		columns: `
			SELECT
				COLUMN_NAME          AS name,
				COLUMN_TYPE          AS data_type,
				IS_NULLABLE = 'YES'  AS is_nullable,
				COLUMN_DEFAULT       AS default_value,
				COLUMN_KEY = 'PRI'   AS is_primary_key
			FROM information_schema.COLUMNS
			WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
			  AND TABLE_NAME = ?
			ORDER BY ORDINAL_POSITION`,
	},
	database.DriverSQLite: {
		defaultNamespace: "main",
		tables: `
			SELECT name AS table_name
			FROM pragma_table_list
			WHERE schema = ?
			  AND type = 'table'
			  AND name NOT LIKE 'sqlite_%'
			ORDER BY name`,
		// pragma_table_info takes (table, schema)
		columns: `
			SELECT
				name,
				type          AS data_type,
				"notnull" = 0 AS is_nullable,
				dflt_value    AS default_value,
				pk > 0        AS is_primary_key
			FROM pragma_table_info(?2, ?1)
			ORDER BY cid`,
	},
	database.DriverClickHouse: {
		tables: `
			SELECT name AS table_name
			FROM system.tables
			WHERE database = coalesce(nullIf(?, ''), currentDatabase())
			  AND NOT is_temporary
			ORDER BY name`,
		columns: `
			SELECT
				name,
				type                          AS data_type,
				startsWith(type, 'Nullable(') AS is_nullable,
				default_expression            AS default_value,
				is_in_primary_key             AS is_primary_key
			FROM system.columns
			WHERE database = coalesce(nullIf(?, ''), currentDatabase())
			  AND table = ?
			ORDER BY position`,
	},
}
