package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

const systemSchemas = `('sys', 'INFORMATION_SCHEMA', 'guest', 'db_owner', 'db_accessadmin',
    'db_securityadmin', 'db_ddladmin', 'db_backupoperator', 'db_datareader',
    'db_datawriter', 'db_denydatareader', 'db_denydatawriter')`

// Introspector reads SQL Server catalog metadata. Catalog views are scoped
// to the connected database, so schema-level results only ever cover it.
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
	Quote: adapter.QuoteBracket,
	Text:  func(expr string) string { return "CAST(" + expr + " AS NVARCHAR(MAX))" },
	Agg: func(expr string) string {
		return fmt.Sprintf("STRING_AGG(CASE WHEN LEN(%[1]s) > 100 THEN LEFT(%[1]s, 100) + '...' ELSE %[1]s END, ',') WITHIN GROUP (ORDER BY %[1]s)", expr)
	},
	Sample: func(table string) string {
		return "SELECT TOP 1000 * FROM " + table + " ORDER BY NEWID()"
	},
	Distinct: func(col string, n int) string {
		return fmt.Sprintf("SELECT DISTINCT TOP %d CAST(%s AS NVARCHAR(MAX)) AS sample_val FROM sample_data WHERE %s IS NOT NULL ORDER BY sample_val", n, col, col)
	},
}

// DataSourceType returns core.TypeSQLServer.
func (in *Introspector) DataSourceType() core.DataSourceType { return core.TypeSQLServer }

// GetDatabases lists user databases on the server.
func (in *Introspector) GetDatabases(ctx context.Context) ([]core.Database, error) {
	const q = `SELECT d.name, COALESCE(SUSER_SNAME(d.owner_sid), ''), d.create_date
FROM sys.databases d
WHERE d.name NOT IN ('master', 'tempdb', 'model', 'msdb')
ORDER BY d.name`

	dbs, err := adapter.CollectRows(ctx, in.db, q, nil, func(rows *sql.Rows) (core.Database, error) {
		var (
			d       core.Database
			created sql.NullTime
		)
		err := rows.Scan(&d.Name, &d.Owner, &created)
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

// GetSchemas lists user schemas of the connected database.
func (in *Introspector) GetSchemas(ctx context.Context, database string) ([]core.Schema, error) {
	w := adapter.NewWhere(adapter.AtPPlaceholder, "s.name NOT IN "+systemSchemas).
		Eq("DB_NAME()", database)
	q := `SELECT s.name, DB_NAME(), COALESCE(p.name, '')
FROM sys.schemas s
LEFT JOIN sys.database_principals p ON s.principal_id = p.principal_id` +
		w.SQL() + " ORDER BY s.name"

	schemas, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.Schema, error) {
		var s core.Schema
		err := rows.Scan(&s.Name, &s.Database, &s.Owner)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get schemas: %w", err)
	}
	return schemas, nil
}

// GetTables lists user tables with row counts and allocated size.
func (in *Introspector) GetTables(ctx context.Context, database, schema string) ([]core.Table, error) {
	w := adapter.NewWhere(adapter.AtPPlaceholder, "s.name NOT IN "+systemSchemas).
		Eq("DB_NAME()", database).
		Eq("s.name", schema)
	q := `SELECT DB_NAME(), s.name, t.name, t.type_desc,
       COALESCE((SELECT SUM(p.rows) FROM sys.partitions p
                 WHERE p.object_id = t.object_id AND p.index_id IN (0, 1)), 0),
       COALESCE((SELECT SUM(a.total_pages) FROM sys.partitions p
                 JOIN sys.allocation_units a ON p.partition_id = a.container_id
                 WHERE p.object_id = t.object_id), 0) * 8192
FROM sys.tables t
JOIN sys.schemas s ON t.schema_id = s.schema_id` +
		w.SQL() + " ORDER BY s.name, t.name"

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

// GetColumns lists table columns in column_id order.
func (in *Introspector) GetColumns(ctx context.Context, database, schema, table string) ([]core.Column, error) {
	w := adapter.NewWhere(adapter.AtPPlaceholder, "s.name NOT IN "+systemSchemas).
		Eq("DB_NAME()", database).
		Eq("s.name", schema).
		Eq("t.name", table)
	q := `SELECT DB_NAME(), s.name, t.name, c.name, c.column_id, ty.name, c.is_nullable,
       dc.definition, c.max_length, c.precision, c.scale
FROM sys.columns c
JOIN sys.tables t ON c.object_id = t.object_id
JOIN sys.schemas s ON t.schema_id = s.schema_id
JOIN sys.types ty ON c.user_type_id = ty.user_type_id
LEFT JOIN sys.default_constraints dc ON c.default_object_id = dc.object_id` +
		w.SQL() + " ORDER BY s.name, t.name, c.column_id"

	columns, err := adapter.CollectRows(ctx, in.db, q, w.Args(), func(rows *sql.Rows) (core.Column, error) {
		var (
			c   core.Column
			def sql.NullString
		)
		err := rows.Scan(&c.Database, &c.Schema, &c.Table, &c.Name, &c.Position, &c.DataType, &c.Nullable,
			&def, &c.MaxLength, &c.Precision, &c.Scale)
		c.DefaultValue = def.String
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	return columns, nil
}

// GetViews lists views with their module definitions.
func (in *Introspector) GetViews(ctx context.Context, database, schema string) ([]core.View, error) {
	w := adapter.NewWhere(adapter.AtPPlaceholder, "s.name NOT IN "+systemSchemas).
		Eq("DB_NAME()", database).
		Eq("s.name", schema)
	q := `SELECT DB_NAME(), s.name, v.name, m.definition
FROM sys.views v
JOIN sys.schemas s ON v.schema_id = s.schema_id
LEFT JOIN sys.sql_modules m ON v.object_id = m.object_id` +
		w.SQL() + " ORDER BY s.name, v.name"

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

// GetTableStatistics sums partition rows and allocated pages of one table.
func (in *Introspector) GetTableStatistics(ctx context.Context, database, schema, table string) (*core.TableStatistics, error) {
	const q = `SELECT COALESCE(SUM(p.rows), 0), COALESCE(SUM(a.total_pages), 0) * 8192
FROM sys.tables t
JOIN sys.partitions p ON t.object_id = p.object_id
JOIN sys.allocation_units a ON p.partition_id = a.container_id
WHERE t.name = @p1 AND SCHEMA_NAME(t.schema_id) = @p2 AND p.index_id IN (0, 1)`

	stats := &core.TableStatistics{
		Table:       table,
		Schema:      schema,
		Database:    database,
		LastUpdated: time.Now(),
	}
	err := in.db.QueryRowContext(ctx, q, table, schema).Scan(&stats.RowCount, &stats.SizeBytes)
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
	q := adapter.BuildColumnStatsQuery(statsDialect, adapter.QuoteBracket(schema)+"."+adapter.QuoteBracket(table), columns)
	return adapter.ScanColumnStatistics(ctx, in.db, q)
}

// GetIndexes lists named indexes with their key columns.
func (in *Introspector) GetIndexes(ctx context.Context, database, schema string) ([]core.Index, error) {
	w := adapter.NewWhere(adapter.AtPPlaceholder, "i.name IS NOT NULL", "s.name NOT IN "+systemSchemas).
		Eq("DB_NAME()", database).
		Eq("s.name", schema)
	q := `SELECT DB_NAME(), s.name, t.name, i.name, i.is_unique, i.is_primary_key, i.type_desc,
       STRING_AGG(c.name, ',') WITHIN GROUP (ORDER BY ic.key_ordinal)
FROM sys.indexes i
JOIN sys.tables t ON i.object_id = t.object_id
JOIN sys.schemas s ON t.schema_id = s.schema_id
JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id AND ic.is_included_column = 0
JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id` +
		w.SQL() +
		" GROUP BY s.name, t.name, i.name, i.is_unique, i.is_primary_key, i.type_desc ORDER BY s.name, t.name, i.name"

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
	w := adapter.NewWhere(adapter.AtPPlaceholder, "s.name NOT IN "+systemSchemas).
		Eq("DB_NAME()", database).
		Eq("s.name", schema)
	q := `SELECT DB_NAME(), fk.name, s.name, t.name,
       STRING_AGG(pc.name, ',') WITHIN GROUP (ORDER BY fkc.constraint_column_id),
       rs.name, rt.name,
       STRING_AGG(rc.name, ',') WITHIN GROUP (ORDER BY fkc.constraint_column_id),
       fk.update_referential_action_desc, fk.delete_referential_action_desc
FROM sys.foreign_keys fk
JOIN sys.tables t ON fk.parent_object_id = t.object_id
JOIN sys.schemas s ON t.schema_id = s.schema_id
JOIN sys.tables rt ON fk.referenced_object_id = rt.object_id
JOIN sys.schemas rs ON rt.schema_id = rs.schema_id
JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id` +
		w.SQL() +
		" GROUP BY fk.name, s.name, t.name, rs.name, rt.name, fk.update_referential_action_desc, fk.delete_referential_action_desc" +
		" ORDER BY s.name, t.name, fk.name"

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
		fk.OnUpdate = strings.ReplaceAll(onUpdate, "_", " ")
		fk.OnDelete = strings.ReplaceAll(onDelete, "_", " ")
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
