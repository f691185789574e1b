package postgres

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

const systemSchemas = "('information_schema', 'pg_catalog', 'pg_toast')"

// Introspector reads PostgreSQL catalog metadata.
type Introspector struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ core.Introspector     = (*Introspector)(nil)
	_ core.IndexLister      = (*Introspector)(nil)
	_ core.ForeignKeyLister = (*Introspector)(nil)
)

var statsDialect = adapter.StatsDialect{
	Quote: adapter.QuoteDouble,
	Text:  func(expr string) string { return expr + "::text" },
	Agg: func(expr string) string {
		return fmt.Sprintf("string_agg(CASE WHEN length(%[1]s) > 100 THEN left(%[1]s, 100) || '...' ELSE %[1]s END, ',' ORDER BY %[1]s)", expr)
	},
	Sample: func(table string) string {
		return "SELECT * FROM " + table + " TABLESAMPLE SYSTEM (1) LIMIT 1000"
	},
	Distinct: func(col string, n int) string {
		return fmt.Sprintf("SELECT DISTINCT %s AS sample_val FROM sample_data WHERE %s IS NOT NULL LIMIT %d", col, col, n)
	},
}

// DataSourceType returns core.TypePostgres.
func (in *Introspector) DataSourceType() core.DataSourceType { return core.TypePostgres }

// GetDatabases lists non-template databases.
func (in *Introspector) GetDatabases(ctx context.Context) ([]core.Database, error) {
	const q = `SELECT datname, pg_catalog.pg_get_userbyid(datdba), pg_catalog.shobj_description(oid, 'pg_database')
FROM pg_catalog.pg_database
WHERE datistemplate = false
ORDER BY datname`

	dbs, err := adapter.CollectRows(ctx, in.db, q, nil, func(rows *sql.Rows) (core.Database, error) {
		var (
			d              core.Database
			owner, comment sql.NullString
		)
		err := rows.Scan(&d.Name, &owner, &comment)
		d.Owner = owner.String
		d.Comment = comment.String
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get databases: %w", err)
	}
	return dbs, nil
}

// GetSchemas lists user schemas, optionally of one database.
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

// GetTables lists base and foreign tables with estimated row counts and sizes.
func (in *Introspector) GetTables(ctx context.Context, database, schema string) ([]core.Table, error) {
	w := adapter.NewWhere(adapter.DollarPlaceholder,
		"t.table_schema NOT IN "+systemSchemas,
		"t.table_type <> 'VIEW'").
		Eq("t.table_catalog", database).
		Eq("t.table_schema", schema)
	q := `SELECT t.table_catalog, t.table_schema, t.table_name, t.table_type,
       COALESCE(c.reltuples, 0)::bigint, COALESCE(pg_total_relation_size(c.oid), 0)
FROM information_schema.tables t
LEFT JOIN pg_catalog.pg_namespace n ON n.nspname = t.table_schema
LEFT JOIN pg_catalog.pg_class c ON c.relname = t.table_name AND c.relnamespace = n.oid` +
		w.SQL() + " ORDER BY t.table_schema, t.table_name"

	tables, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.Table, error) {
		var (
			t    core.Table
			kind string
		)
		err := rows.Scan(&t.Database, &t.Schema, &t.Name, &kind, &t.RowCount, &t.SizeBytes)
		t.Type = adapter.MapTableType(kind)
		if t.RowCount < 0 {
			t.RowCount = 0
		}
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

	columns, err := adapter.CollectRows(ctx, in.db, q, w.Args(), scanColumn)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	return columns, nil
}

func scanColumn(rows *sql.Rows) (core.Column, error) {
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
}

// GetViews lists views with their definitions.
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

// GetTableStatistics reports the live tuple count from pg_stat_user_tables.
// A table without statistics reports zero rows.
func (in *Introspector) GetTableStatistics(ctx context.Context, database, schema, table string) (*core.TableStatistics, error) {
	const q = `SELECT n_live_tup, COALESCE(pg_total_relation_size(relid), 0)
FROM pg_stat_user_tables
WHERE schemaname = $1 AND relname = $2`

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

// GetColumnStatistics computes per-column statistics in a single table scan.
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

// GetIndexes lists indexes with their key columns in key order.
func (in *Introspector) GetIndexes(ctx context.Context, database, schema string) ([]core.Index, error) {
	w := adapter.NewWhere(adapter.DollarPlaceholder, "n.nspname NOT IN "+systemSchemas).
		Eq("current_database()", database).
		Eq("n.nspname", schema)
	q := `SELECT current_database(), n.nspname, t.relname, i.relname, ix.indisunique, ix.indisprimary, am.amname,
       array_to_string(ARRAY(
           SELECT a.attname FROM unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord)
           JOIN pg_catalog.pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
           ORDER BY k.ord), ',')
FROM pg_catalog.pg_index ix
JOIN pg_catalog.pg_class t ON t.oid = ix.indrelid
JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
JOIN pg_catalog.pg_am am ON am.oid = i.relam` +
		w.SQL() + " ORDER BY n.nspname, t.relname, i.relname"

	indexes, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.Index, error) {
		var (
			ix      core.Index
			columns string
		)
		err := rows.Scan(&ix.Database, &ix.Schema, &ix.Table, &ix.Name, &ix.Unique, &ix.Primary, &ix.Type, &columns)
		ix.Columns = adapter.SplitList(columns)
		return ix, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get indexes: %w", err)
	}
	return indexes, nil
}

// GetForeignKeys lists foreign key constraints.
func (in *Introspector) GetForeignKeys(ctx context.Context, database, schema string) ([]core.ForeignKey, error) {
	w := adapter.NewWhere(adapter.DollarPlaceholder, "con.contype = 'f'", "ns.nspname NOT IN "+systemSchemas).
		Eq("current_database()", database).
		Eq("ns.nspname", schema)
	q := `SELECT current_database(), con.conname, ns.nspname, cl.relname,
       array_to_string(ARRAY(
           SELECT a.attname FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
           JOIN pg_catalog.pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
           ORDER BY k.ord), ','),
       rns.nspname, rcl.relname,
       array_to_string(ARRAY(
           SELECT a.attname FROM unnest(con.confkey) WITH ORDINALITY AS k(attnum, ord)
           JOIN pg_catalog.pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.attnum
           ORDER BY k.ord), ','),
       con.confupdtype, con.confdeltype
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class cl ON cl.oid = con.conrelid
JOIN pg_catalog.pg_namespace ns ON ns.oid = cl.relnamespace
JOIN pg_catalog.pg_class rcl ON rcl.oid = con.confrelid
JOIN pg_catalog.pg_namespace rns ON rns.oid = rcl.relnamespace` +
		w.SQL() + " ORDER BY ns.nspname, cl.relname, con.conname"

	fks, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.ForeignKey, error) {
		var (
			fk                 core.ForeignKey
			srcCols, refCols   string
			onUpdate, onDelete string
		)
		err := rows.Scan(&fk.SourceDatabase, &fk.Name, &fk.SourceSchema, &fk.SourceTable, &srcCols,
			&fk.ReferencedSchema, &fk.ReferencedTable, &refCols, &onUpdate, &onDelete)
		fk.ReferencedDatabase = fk.SourceDatabase
		fk.SourceColumns = adapter.SplitList(srcCols)
		fk.ReferencedColumns = adapter.SplitList(refCols)
		fk.OnUpdate = referentialAction(onUpdate)
		fk.OnDelete = referentialAction(onDelete)
		return fk, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}
	return fks, nil
}

// referentialAction decodes pg_constraint.confupdtype/confdeltype.
func referentialAction(code string) string {
	switch code {
	case "a":
		return "NO ACTION"
	case "r":
		return "RESTRICT"
	case "c":
		return "CASCADE"
	case "n":
		return "SET NULL"
	case "d":
		return "SET DEFAULT"
	default:
		return ""
	}
}

// GetFullIntrospection returns a filtered snapshot with column statistics.
func (in *Introspector) GetFullIntrospection(ctx context.Context, opts *core.IntrospectOptions) (*core.IntrospectionResult, error) {
	return adapter.FullIntrospection(ctx, in, opts, in.logger)
}
