package bigquery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

// Introspector reads BigQuery metadata from the region-qualified
// INFORMATION_SCHEMA views. Projects are reported as databases and datasets
// as schemas.
type Introspector struct {
	runner   runner
	location string
	logger   *slog.Logger
}

var _ core.Introspector = (*Introspector)(nil)

// namedPlaceholder binds the n-th catalog filter as @param{n-1}.
var namedPlaceholder adapter.Placeholder = func(n int) string { return "@" + adapter.ParamName(n-1) }

var statsDialect = adapter.StatsDialect{
	Quote: adapter.QuoteBacktick,
	Text:  func(expr string) string { return "CAST(" + expr + " AS STRING)" },
	Agg: func(expr string) string {
		return fmt.Sprintf("STRING_AGG(SUBSTR(%[1]s, 1, 100), ',' ORDER BY %[1]s)", expr)
	},
	Sample: func(table string) string {
		return "SELECT * FROM " + table + " ORDER BY RAND() LIMIT 1000"
	},
	Distinct: func(col string, n int) string {
		return fmt.Sprintf("SELECT DISTINCT %s AS sample_val FROM sample_data WHERE %s IS NOT NULL LIMIT %d", col, col, n)
	},
}

// DataSourceType returns core.TypeBigQuery.
func (in *Introspector) DataSourceType() core.DataSourceType { return core.TypeBigQuery }

// infoSchema qualifies an INFORMATION_SCHEMA view with project and region.
func (in *Introspector) infoSchema(database, view string) string {
	project := database
	if project == "" {
		project = in.runner.project()
	}
	return fmt.Sprintf("`%s`.`region-%s`.INFORMATION_SCHEMA.%s", project, strings.ToLower(in.location), view)
}

func (in *Introspector) query(ctx context.Context, sql string, w *adapter.Where) ([][]bigquery.Value, error) {
	req := queryRequest{sql: sql, timeout: defaultJobTimeout}
	if w != nil {
		req.params = namedParams(w.Args())
	}
	resp, err := in.runner.run(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.rows, nil
}

// GetDatabases reports the client's project.
func (in *Introspector) GetDatabases(context.Context) ([]core.Database, error) {
	return []core.Database{{Name: in.runner.project()}}, nil
}

// GetSchemas lists datasets in the configured location.
func (in *Introspector) GetSchemas(ctx context.Context, database string) ([]core.Schema, error) {
	q := "SELECT catalog_name, schema_name FROM " + in.infoSchema(database, "SCHEMATA") + " ORDER BY schema_name"

	rows, err := in.query(ctx, q, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get schemas: %w", err)
	}
	schemas := make([]core.Schema, 0, len(rows))
	for _, r := range rows {
		schemas = append(schemas, core.Schema{Database: valueString(r[0]), Name: valueString(r[1])})
	}
	return schemas, nil
}

// GetTables lists tables with row counts and logical bytes from TABLE_STORAGE.
func (in *Introspector) GetTables(ctx context.Context, database, schema string) ([]core.Table, error) {
	w := adapter.NewWhere(namedPlaceholder, "t.table_type <> 'VIEW'").
		Eq("t.table_schema", schema)
	q := `SELECT t.table_catalog, t.table_schema, t.table_name, t.table_type, s.total_rows, s.total_logical_bytes
FROM ` + in.infoSchema(database, "TABLES") + ` t
LEFT JOIN ` + in.infoSchema(database, "TABLE_STORAGE") + ` s
  ON s.table_schema = t.table_schema AND s.table_name = t.table_name` +
		w.SQL() + " ORDER BY t.table_schema, t.table_name"

	rows, err := in.query(ctx, q, w)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	tables := make([]core.Table, 0, len(rows))
	for _, r := range rows {
		tables = append(tables, core.Table{
			Database:  valueString(r[0]),
			Schema:    valueString(r[1]),
			Name:      valueString(r[2]),
			Type:      adapter.MapTableType(valueString(r[3])),
			RowCount:  valueInt(r[4]),
			SizeBytes: valueInt(r[5]),
		})
	}
	return tables, nil
}

// GetColumns lists columns in ordinal order.
func (in *Introspector) GetColumns(ctx context.Context, database, schema, table string) ([]core.Column, error) {
	w := adapter.NewWhere(namedPlaceholder).
		Eq("table_schema", schema).
		Eq("table_name", table)
	q := `SELECT table_catalog, table_schema, table_name, column_name, ordinal_position, data_type, is_nullable, column_default
FROM ` + in.infoSchema(database, "COLUMNS") +
		w.SQL() + " ORDER BY table_schema, table_name, ordinal_position"

	rows, err := in.query(ctx, q, w)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	columns := make([]core.Column, 0, len(rows))
	for _, r := range rows {
		c := core.Column{
			Database: valueString(r[0]),
			Schema:   valueString(r[1]),
			Table:    valueString(r[2]),
			Name:     valueString(r[3]),
			Position: int(valueInt(r[4])),
			DataType: valueString(r[5]),
			Nullable: valueString(r[6]) == "YES",
		}
		// BigQuery reports a missing default as the literal NULL.
		if def := valueString(r[7]); def != "NULL" {
			c.DefaultValue = def
		}
		columns = append(columns, c)
	}
	return columns, nil
}

// GetViews lists views with their definitions.
func (in *Introspector) GetViews(ctx context.Context, database, schema string) ([]core.View, error) {
	w := adapter.NewWhere(namedPlaceholder).Eq("table_schema", schema)
	q := "SELECT table_catalog, table_schema, table_name, view_definition FROM " +
		in.infoSchema(database, "VIEWS") + w.SQL() + " ORDER BY table_schema, table_name"

	rows, err := in.query(ctx, q, w)
	if err != nil {
		return nil, fmt.Errorf("failed to get views: %w", err)
	}
	views := make([]core.View, 0, len(rows))
	for _, r := range rows {
		views = append(views, core.View{
			Database:   valueString(r[0]),
			Schema:     valueString(r[1]),
			Name:       valueString(r[2]),
			Definition: valueString(r[3]),
		})
	}
	return views, nil
}

// GetTableStatistics reads total_rows and total_logical_bytes for one table.
func (in *Introspector) GetTableStatistics(ctx context.Context, database, schema, table string) (*core.TableStatistics, error) {
	w := adapter.NewWhere(namedPlaceholder).
		Eq("table_schema", schema).
		Eq("table_name", table)
	q := "SELECT total_rows, total_logical_bytes FROM " + in.infoSchema(database, "TABLE_STORAGE") + w.SQL()

	rows, err := in.query(ctx, q, w)
	if err != nil {
		return nil, fmt.Errorf("failed to get table statistics: %w", err)
	}
	stats := &core.TableStatistics{
		Table:       table,
		Schema:      schema,
		Database:    database,
		LastUpdated: time.Now(),
	}
	if len(rows) > 0 {
		stats.RowCount = valueInt(rows[0][0])
		stats.SizeBytes = valueInt(rows[0][1])
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
	target := adapter.QuoteBacktick(schema) + "." + adapter.QuoteBacktick(table)
	if database != "" {
		target = adapter.QuoteBacktick(database) + "." + target
	}

	rows, err := in.query(ctx, adapter.BuildColumnStatsQuery(statsDialect, target, columns), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query column statistics: %w", err)
	}
	stats := make([]core.ColumnStatistics, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, core.ColumnStatistics{
			ColumnName:    valueString(r[0]),
			DistinctCount: valueInt(r[1]),
			NullCount:     valueInt(r[2]),
			MinValue:      valueString(r[3]),
			MaxValue:      valueString(r[4]),
			SampleValues:  valueString(r[5]),
		})
	}
	return stats, nil
}

// GetFullIntrospection returns a filtered snapshot with column statistics.
func (in *Introspector) GetFullIntrospection(ctx context.Context, opts *core.IntrospectOptions) (*core.IntrospectionResult, error) {
	return adapter.FullIntrospection(ctx, in, opts, in.logger)
}
