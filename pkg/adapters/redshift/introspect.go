package redshift

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

const systemSchemas = "('information_schema', 'pg_catalog', 'pg_internal', 'pg_automv')"

// Introspector reads Redshift catalog metadata. Redshift enforces neither
// indexes nor foreign keys, so only the core introspection surface is offered.
type Introspector struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ core.Introspector = (*Introspector)(nil)

var statsDialect = adapter.StatsDialect{
	Quote: adapter.QuoteDouble,
	Text:  func(expr string) string { return expr + "::varchar" },
	Agg: func(expr string) string {
		return fmt.Sprintf("LISTAGG(LEFT(%[1]s, 100), ',') WITHIN GROUP (ORDER BY %[1]s)", expr)
	},
	Sample: func(table string) string {
		return "SELECT * FROM " + table + " ORDER BY RANDOM() LIMIT 1000"
	},
	Distinct: func(col string, n int) string {
		return fmt.Sprintf("SELECT DISTINCT %s AS sample_val FROM sample_data WHERE %s IS NOT NULL LIMIT %d", col, col, n)
	},
}

// DataSourceType returns core.TypeRedshift.
func (in *Introspector) DataSourceType() core.DataSourceType { return core.TypeRedshift }

// GetDatabases lists user databases on the cluster.
func (in *Introspector) GetDatabases(ctx context.Context) ([]core.Database, error) {
	const q = `SELECT datname, pg_catalog.pg_get_userbyid(datdba)
FROM pg_catalog.pg_database
WHERE datname NOT IN ('template0', 'template1', 'padb_harvest')
ORDER BY datname`

	dbs, err := adapter.CollectRows(ctx, in.db, q, nil, func(rows *sql.Rows) (core.Database, error) {
		var (
			d     core.Database
			owner sql.NullString
		)
		err := rows.Scan(&d.Name, &owner)
		d.Owner = owner.String
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get databases: %w", err)
	}
	return dbs, nil
}

// GetSchemas lists user schemas.
func (in *Introspector) GetSchemas(ctx context.Context, database string) ([]core.Schema, error) {
	w := adapter.NewWhere(adapter.DollarPlaceholder, "schema_name NOT IN "+systemSchemas).
		Eq("catalog_name", database)
	q := "SELECT schema_name, catalog_name, schema_owner FROM information_schema.schemata" +
		w.SQL() + " ORDER BY schema_name"

	schemas, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.Schema, error) {
		var (
			s     core.Schema
			owner sql.NullString
		)
		err := rows.Scan(&s.Name, &s.Database, &owner)
		s.Owner = owner.String
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get schemas: %w", err)
	}
	return schemas, nil
}

// GetTables lists tables with row counts and sizes from svv_table_info.
// svv_table_info reports size in 1 MB blocks.
func (in *Introspector) GetTables(ctx context.Context, database, schema string) ([]core.Table, error) {
	w := adapter.NewWhere(adapter.DollarPlaceholder,
		"t.table_schema NOT IN "+systemSchemas,
		"t.table_type <> 'VIEW'").
		Eq("t.table_catalog", database).
		Eq("t.table_schema", schema)
	q := `SELECT t.table_catalog, t.table_schema, t.table_name, t.table_type,
       COALESCE(i.tbl_rows, 0)::bigint, COALESCE(i.size, 0)::bigint * 1048576
FROM information_schema.tables t
LEFT JOIN svv_table_info i ON i."schema" = t.table_schema AND i."table" = t.table_name` +
		w.SQL() + " ORDER BY t.table_schema, t.table_name"

	tables, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.Table, error) {
		var (
			t    core.Table
			kind string
		)
		err := rows.Scan(&t.Database, &t.Schema, &t.Name, &kind, &t.RowCount, &t.SizeBytes)
		t.Type = adapter.MapTableType(kind)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	return tables, nil
}

// GetColumns lists columns in ordinal order.
func (in *Introspector) GetColumns(ctx context.Context, database, schema, table string) ([]core.Column, error) {
	w := adapter.NewWhere(adapter.DollarPlaceholder, "table_schema NOT IN "+systemSchemas).
		Eq("table_catalog", database).
		Eq("table_schema", schema).
		Eq("table_name", table)
	q := `SELECT table_catalog, table_schema, table_name, column_name, ordinal_position, data_type,
       is_nullable, column_default, character_maximum_length, numeric_precision, numeric_scale
FROM information_schema.columns` +
		w.SQL() + " ORDER BY table_schema, table_name, ordinal_position"

	columns, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.Column, error) {
		var (
			c                        core.Column
			nullable                 string
			def                      sql.NullString
			maxLen, precision, scale sql.NullInt64
		)
		err := rows.Scan(&c.Database, &c.Schema, &c.Table, &c.Name, &c.Position, &c.DataType,
			&nullable, &def, &maxLen, &precision, &scale)
		c.Nullable = nullable == "YES"
		c.DefaultValue = def.String
		c.MaxLength = maxLen.Int64
		c.Precision = precision.Int64
		c.Scale = scale.Int64
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	return columns, nil
}

// GetViews lists views, late-binding views included.
func (in *Introspector) GetViews(ctx context.Context, database, schema string) ([]core.View, error) {
	w := adapter.NewWhere(adapter.DollarPlaceholder, "table_schema NOT IN "+systemSchemas).
		Eq("table_catalog", database).
		Eq("table_schema", schema)
	q := "SELECT table_catalog, table_schema, table_name, view_definition FROM information_schema.views" +
		w.SQL() + " ORDER BY table_schema, table_name"

	views, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.View, error) {
		var (
			v   core.View
			def sql.NullString
		)
		err := rows.Scan(&v.Database, &v.Schema, &v.Name, &def)
		v.Definition = def.String
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get views: %w", err)
	}
	return views, nil
}

// GetTableStatistics reads tbl_rows and size from svv_table_info.
// A table missing from svv_table_info (empty or never analyzed) reports zero.
func (in *Introspector) GetTableStatistics(ctx context.Context, database, schema, table string) (*core.TableStatistics, error) {
	const q = `SELECT COALESCE(tbl_rows, 0)::bigint, COALESCE(size, 0)::bigint * 1048576
FROM svv_table_info
WHERE "schema" = $1 AND "table" = $2`

	stats := &core.TableStatistics{
		Table:       table,
		Schema:      schema,
		Database:    database,
		LastUpdated: time.Now(),
	}
	err := in.db.QueryRowContext(ctx, q, schema, table).Scan(&stats.RowCount, &stats.SizeBytes)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get table statistics: %w", err)
	}
	return stats, nil
}

// GetColumnStatistics computes per-column statistics over a random sample.
func (in *Introspector) GetColumnStatistics(ctx context.Context, database, schema, table string) ([]core.ColumnStatistics, error) {
	columns, err := in.GetColumns(ctx, database, schema, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return []core.ColumnStatistics{}, nil
	}
	q := adapter.BuildColumnStatsQuery(statsDialect, adapter.QuoteDouble(schema)+"."+adapter.QuoteDouble(table), columns)
	return adapter.ScanColumnStatistics(ctx, in.db, q)
}

// GetFullIntrospection returns a filtered snapshot with column statistics.
func (in *Introspector) GetFullIntrospection(ctx context.Context, opts *core.IntrospectOptions) (*core.IntrospectionResult, error) {
	return adapter.FullIntrospection(ctx, in, opts, in.logger)
}
