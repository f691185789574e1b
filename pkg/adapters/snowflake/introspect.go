package snowflake

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

// Introspector reads Snowflake INFORMATION_SCHEMA metadata. Snowflake keeps
// one INFORMATION_SCHEMA per database, so database-scoped calls are routed
// to that database's views and the rest use the session's current database.
type Introspector struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ core.Introspector = (*Introspector)(nil)

var statsDialect = adapter.StatsDialect{
	Quote: adapter.QuoteDouble,
	Text:  func(expr string) string { return "TO_VARCHAR(" + expr + ")" },
	Agg: func(expr string) string {
		return fmt.Sprintf("LISTAGG(LEFT(%[1]s, 100), ',') WITHIN GROUP (ORDER BY %[1]s)", expr)
	},
	Sample: func(table string) string {
		return "SELECT * FROM " + table + " SAMPLE (1000 ROWS)"
	},
	Distinct: func(col string, n int) string {
		return fmt.Sprintf("SELECT DISTINCT %s AS sample_val FROM sample_data WHERE %s IS NOT NULL LIMIT %d", col, col, n)
	},
}

// infoSchema returns the INFORMATION_SCHEMA of database, or of the current
// database when database is empty.
func infoSchema(database string) string {
	if database == "" {
		return "INFORMATION_SCHEMA"
	}
	return adapter.QuoteDouble(database) + ".INFORMATION_SCHEMA"
}

// DataSourceType returns core.TypeSnowflake.
func (in *Introspector) DataSourceType() core.DataSourceType { return core.TypeSnowflake }

// GetDatabases lists databases visible to the current role.
func (in *Introspector) GetDatabases(ctx context.Context) ([]core.Database, error) {
	const q = `SELECT database_name, database_owner, comment, created
FROM INFORMATION_SCHEMA.DATABASES
ORDER BY database_name`

	dbs, err := adapter.CollectRows(ctx, in.db, q, nil, func(rows *sql.Rows) (core.Database, error) {
		var (
			d              core.Database
			owner, comment sql.NullString
			created        sql.NullTime
		)
		err := rows.Scan(&d.Name, &owner, &comment, &created)
		d.Owner = owner.String
		d.Comment = comment.String
		if created.Valid {
			d.Created = &created.Time
		}
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get databases: %w", err)
	}
	return dbs, nil
}

// GetSchemas lists schemas other than INFORMATION_SCHEMA.
func (in *Introspector) GetSchemas(ctx context.Context, database string) ([]core.Schema, error) {
	q := `SELECT schema_name, catalog_name, schema_owner, comment
FROM ` + infoSchema(database) + `.SCHEMATA
WHERE schema_name <> 'INFORMATION_SCHEMA'
ORDER BY schema_name`

	schemas, err := adapter.CollectRows(ctx, in.db, q, nil, func(rows *sql.Rows) (core.Schema, error) {
		var (
			s              core.Schema
			owner, comment sql.NullString
		)
		err := rows.Scan(&s.Name, &s.Database, &owner, &comment)
		s.Owner = owner.String
		s.Comment = comment.String
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get schemas: %w", err)
	}
	return schemas, nil
}

// GetTables lists tables with their row counts and bytes.
func (in *Introspector) GetTables(ctx context.Context, database, schema string) ([]core.Table, error) {
	w := adapter.NewWhere(adapter.QuestionPlaceholder,
		"table_schema <> 'INFORMATION_SCHEMA'",
		"table_type <> 'VIEW'").
		Eq("table_schema", schema)
	q := `SELECT table_catalog, table_schema, table_name, table_type, row_count, bytes, comment
FROM ` + infoSchema(database) + ".TABLES" +
		w.SQL() + " ORDER BY table_schema, table_name"

	tables, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.Table, error) {
		var (
			t           core.Table
			kind        string
			count, size sql.NullInt64
			comment     sql.NullString
		)
		err := rows.Scan(&t.Database, &t.Schema, &t.Name, &kind, &count, &size, &comment)
		t.Type = adapter.MapTableType(kind)
		t.RowCount = count.Int64
		t.SizeBytes = size.Int64
		t.Comment = comment.String
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	return tables, nil
}

// GetColumns lists columns in ordinal order.
func (in *Introspector) GetColumns(ctx context.Context, database, schema, table string) ([]core.Column, error) {
	w := adapter.NewWhere(adapter.QuestionPlaceholder, "table_schema <> 'INFORMATION_SCHEMA'").
		Eq("table_schema", schema).
		Eq("table_name", table)
	q := `SELECT table_catalog, table_schema, table_name, column_name, ordinal_position, data_type,
       is_nullable, column_default, character_maximum_length, numeric_precision, numeric_scale, comment
FROM ` + infoSchema(database) + ".COLUMNS" +
		w.SQL() + " ORDER BY table_schema, table_name, ordinal_position"

	columns, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.Column, error) {
		var (
			c                        core.Column
			nullable                 string
			def, comment             sql.NullString
			maxLen, precision, scale sql.NullInt64
		)
		err := rows.Scan(&c.Database, &c.Schema, &c.Table, &c.Name, &c.Position, &c.DataType,
			&nullable, &def, &maxLen, &precision, &scale, &comment)
		c.Nullable = nullable == "YES"
		c.DefaultValue = def.String
		c.MaxLength = maxLen.Int64
		c.Precision = precision.Int64
		c.Scale = scale.Int64
		c.Comment = comment.String
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	return columns, nil
}

// GetViews lists views. Definitions of secure views are hidden by Snowflake.
func (in *Introspector) GetViews(ctx context.Context, database, schema string) ([]core.View, error) {
	w := adapter.NewWhere(adapter.QuestionPlaceholder, "table_schema <> 'INFORMATION_SCHEMA'").
		Eq("table_schema", schema)
	q := "SELECT table_catalog, table_schema, table_name, view_definition, comment FROM " +
		infoSchema(database) + ".VIEWS" + w.SQL() + " ORDER BY table_schema, table_name"

	views, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.View, error) {
		var (
			v            core.View
			def, comment sql.NullString
		)
		err := rows.Scan(&v.Database, &v.Schema, &v.Name, &def, &comment)
		v.Definition = def.String
		v.Comment = comment.String
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get views: %w", err)
	}
	return views, nil
}

// GetTableStatistics reads row_count and bytes for one table.
func (in *Introspector) GetTableStatistics(ctx context.Context, database, schema, table string) (*core.TableStatistics, error) {
	q := "SELECT COALESCE(row_count, 0), COALESCE(bytes, 0) FROM " + infoSchema(database) +
		".TABLES WHERE table_schema = ? AND table_name = ?"

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

// GetColumnStatistics computes per-column statistics over a 1000 row sample.
func (in *Introspector) GetColumnStatistics(ctx context.Context, database, schema, table string) ([]core.ColumnStatistics, error) {
	columns, err := in.GetColumns(ctx, database, schema, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return []core.ColumnStatistics{}, nil
	}
	target := adapter.QuoteDouble(schema) + "." + adapter.QuoteDouble(table)
	if database != "" {
		target = adapter.QuoteDouble(database) + "." + target
	}
	q := adapter.BuildColumnStatsQuery(statsDialect, target, columns)
	return adapter.ScanColumnStatistics(ctx, in.db, q)
}

// GetFullIntrospection returns a filtered snapshot with column statistics.
func (in *Introspector) GetFullIntrospection(ctx context.Context, opts *core.IntrospectOptions) (*core.IntrospectionResult, error) {
	return adapter.FullIntrospection(ctx, in, opts, in.logger)
}
