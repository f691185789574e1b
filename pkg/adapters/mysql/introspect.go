package mysql

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

const systemSchemas = "('information_schema', 'performance_schema', 'mysql', 'sys')"

// Introspector reads MySQL catalog metadata.
//
// MySQL has no separate catalog level: each schema is reported both as a
// database and as a schema of the same name. Wherever a database and a
// schema argument are accepted, the database wins and the schema is the
// fallback.
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
	Quote: adapter.QuoteBacktick,
	Text:  func(expr string) string { return "CAST(" + expr + " AS CHAR)" },
	Agg: func(expr string) string {
		return fmt.Sprintf("GROUP_CONCAT(CASE WHEN CHAR_LENGTH(%[1]s) > 100 THEN CONCAT(LEFT(%[1]s, 100), '...') ELSE %[1]s END ORDER BY %[1]s SEPARATOR ',')", expr)
	},
	Sample: func(table string) string {
		return "SELECT * FROM " + table + " ORDER BY RAND() LIMIT 1000"
	},
	Distinct: func(col string, n int) string {
		return fmt.Sprintf("SELECT DISTINCT CAST(%s AS CHAR) AS sample_val FROM sample_data WHERE %s IS NOT NULL LIMIT %d", col, col, n)
	},
}

func target(database, schema string) string {
	if database != "" {
		return database
	}
	return schema
}

// DataSourceType returns core.TypeMySQL.
func (in *Introspector) DataSourceType() core.DataSourceType { return core.TypeMySQL }

// GetDatabases lists user schemas.
func (in *Introspector) GetDatabases(ctx context.Context) ([]core.Database, error) {
	q := "SELECT schema_name FROM information_schema.schemata WHERE schema_name NOT IN " + systemSchemas +
		" ORDER BY schema_name"

	dbs, err := adapter.CollectRows(ctx, in.db, q, nil, func(rows *sql.Rows) (core.Database, error) {
		var d core.Database
		err := rows.Scan(&d.Name)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get databases: %w", err)
	}
	return dbs, nil
}

// GetSchemas lists user schemas, each owned by the database of the same name.
func (in *Introspector) GetSchemas(ctx context.Context, database string) ([]core.Schema, error) {
	w := adapter.NewWhere(adapter.QuestionPlaceholder, "schema_name NOT IN "+systemSchemas).
		Eq("schema_name", database)
	q := "SELECT schema_name FROM information_schema.schemata" + w.SQL() + " ORDER BY schema_name"

	schemas, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.Schema, error) {
		var s core.Schema
		err := rows.Scan(&s.Name)
		s.Database = s.Name
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get schemas: %w", err)
	}
	return schemas, nil
}

// GetTables lists base tables with their estimated row counts and sizes.
func (in *Introspector) GetTables(ctx context.Context, database, schema string) ([]core.Table, error) {
	w := adapter.NewWhere(adapter.QuestionPlaceholder,
		"table_schema NOT IN "+systemSchemas,
		"table_type <> 'VIEW'").
		Eq("table_schema", target(database, schema))
	q := `SELECT table_schema, table_name, table_type, COALESCE(table_rows, 0),
       COALESCE(data_length, 0) + COALESCE(index_length, 0), COALESCE(table_comment, '')
FROM information_schema.tables` +
		w.SQL() + " ORDER BY table_schema, table_name"

	tables, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.Table, error) {
		var (
			t    core.Table
			kind string
		)
		err := rows.Scan(&t.Database, &t.Name, &kind, &t.RowCount, &t.SizeBytes, &t.Comment)
		t.Schema = t.Database
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
	w := adapter.NewWhere(adapter.QuestionPlaceholder, "table_schema NOT IN "+systemSchemas).
		Eq("table_schema", target(database, schema)).
		Eq("table_name", table)
	q := `SELECT table_schema, table_name, column_name, ordinal_position, data_type, is_nullable,
       column_default, character_maximum_length, numeric_precision, numeric_scale, column_comment
FROM information_schema.columns` +
		w.SQL() + " ORDER BY table_schema, table_name, ordinal_position"

	columns, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.Column, error) {
		var (
			c                        core.Column
			nullable                 string
			def, comment             sql.NullString
			maxLen, precision, scale sql.NullInt64
		)
		err := rows.Scan(&c.Database, &c.Table, &c.Name, &c.Position, &c.DataType, &nullable,
			&def, &maxLen, &precision, &scale, &comment)
		c.Schema = c.Database
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

// GetViews lists views with their definitions.
func (in *Introspector) GetViews(ctx context.Context, database, schema string) ([]core.View, error) {
	w := adapter.NewWhere(adapter.QuestionPlaceholder, "table_schema NOT IN "+systemSchemas).
		Eq("table_schema", target(database, schema))
	q := "SELECT table_schema, table_name, view_definition FROM information_schema.views" +
		w.SQL() + " ORDER BY table_schema, table_name"

	views, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.View, error) {
		var (
			v   core.View
			def sql.NullString
		)
		err := rows.Scan(&v.Database, &v.Name, &def)
		v.Schema = v.Database
		v.Definition = def.String
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get views: %w", err)
	}
	return views, nil
}

// GetTableStatistics reports the row estimate and on-disk size of one table.
func (in *Introspector) GetTableStatistics(ctx context.Context, database, schema, table string) (*core.TableStatistics, error) {
	const q = `SELECT COALESCE(table_rows, 0), COALESCE(data_length, 0) + COALESCE(index_length, 0)
FROM information_schema.tables
WHERE table_schema = ? AND table_name = ?`

	db := target(database, schema)
	stats := &core.TableStatistics{
		Table:       table,
		Schema:      db,
		Database:    db,
		LastUpdated: time.Now(),
	}
	err := in.db.QueryRowContext(ctx, q, db, table).Scan(&stats.RowCount, &stats.SizeBytes)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get table statistics: %w", err)
	}
	return stats, nil
}

// GetColumnStatistics computes per-column statistics in a single table scan.
func (in *Introspector) GetColumnStatistics(ctx context.Context, database, schema, table string) ([]core.ColumnStatistics, error) {
	db := target(database, schema)
	columns, err := in.GetColumns(ctx, db, "", table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return []core.ColumnStatistics{}, nil
	}
	q := adapter.BuildColumnStatsQuery(statsDialect, adapter.QuoteBacktick(db)+"."+adapter.QuoteBacktick(table), columns)
	return adapter.ScanColumnStatistics(ctx, in.db, q)
}

// GetIndexes lists indexes with their columns in sequence order.
func (in *Introspector) GetIndexes(ctx context.Context, database, schema string) ([]core.Index, error) {
	w := adapter.NewWhere(adapter.QuestionPlaceholder, "table_schema NOT IN "+systemSchemas).
		Eq("table_schema", target(database, schema))
	q := `SELECT table_schema, table_name, index_name, MIN(non_unique), MIN(index_type),
       GROUP_CONCAT(column_name ORDER BY seq_in_index SEPARATOR ',')
FROM information_schema.statistics` +
		w.SQL() + " GROUP BY table_schema, table_name, index_name ORDER BY table_schema, table_name, index_name"

	indexes, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.Index, error) {
		var (
			ix        core.Index
			nonUnique int64
			columns   string
		)
		err := rows.Scan(&ix.Database, &ix.Table, &ix.Name, &nonUnique, &ix.Type, &columns)
		ix.Schema = ix.Database
		ix.Unique = nonUnique == 0
		ix.Primary = ix.Name == "PRIMARY"
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
	w := adapter.NewWhere(adapter.QuestionPlaceholder,
		"k.referenced_table_name IS NOT NULL",
		"k.table_schema NOT IN "+systemSchemas).
		Eq("k.table_schema", target(database, schema))
	q := `SELECT k.constraint_name, k.table_schema, k.table_name,
       GROUP_CONCAT(k.column_name ORDER BY k.ordinal_position SEPARATOR ','),
       k.referenced_table_schema, k.referenced_table_name,
       GROUP_CONCAT(k.referenced_column_name ORDER BY k.ordinal_position SEPARATOR ','),
       MIN(r.update_rule), MIN(r.delete_rule)
FROM information_schema.key_column_usage k
JOIN information_schema.referential_constraints r
  ON r.constraint_schema = k.constraint_schema AND r.constraint_name = k.constraint_name` +
		w.SQL() +
		" GROUP BY k.constraint_name, k.table_schema, k.table_name, k.referenced_table_schema, k.referenced_table_name" +
		" ORDER BY k.table_schema, k.table_name, k.constraint_name"

	fks, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.ForeignKey, error) {
		var (
			fk               core.ForeignKey
			srcCols, refCols string
		)
		err := rows.Scan(&fk.Name, &fk.SourceDatabase, &fk.SourceTable, &srcCols,
			&fk.ReferencedDatabase, &fk.ReferencedTable, &refCols, &fk.OnUpdate, &fk.OnDelete)
		fk.SourceSchema = fk.SourceDatabase
		fk.ReferencedSchema = fk.ReferencedDatabase
		fk.SourceColumns = adapter.SplitList(srcCols)
		fk.ReferencedColumns = adapter.SplitList(refCols)
		return fk, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}
	return fks, nil
}

// GetFullIntrospection returns a filtered snapshot with column statistics.
func (in *Introspector) GetFullIntrospection(ctx context.Context, opts *core.IntrospectOptions) (*core.IntrospectionResult, error) {
	return adapter.FullIntrospection(ctx, in, opts, in.logger)
}
