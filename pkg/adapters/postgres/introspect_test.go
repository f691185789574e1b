package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/warehouse/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columnCols = []string{
	"table_catalog", "table_schema", "table_name", "column_name", "ordinal_position", "data_type",
	"is_nullable", "column_default", "character_maximum_length", "numeric_precision", "numeric_scale",
}

func newMockIntrospector(t *testing.T) (*Introspector, sqlmock.Sqlmock) {
	t.Helper()
	adp, mock := newMockAdapter(t)
	in, err := adp.Introspect()
	require.NoError(t, err)
	return in.(*Introspector), mock
}

func TestIntrospector_GetSchemas(t *testing.T) {
	in, mock := newMockIntrospector(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.schemata WHERE schema_name NOT IN ('information_schema', 'pg_catalog', 'pg_toast') AND catalog_name = $1")).
		WithArgs("app").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name", "catalog_name", "schema_owner"}).
			AddRow("public", "app", "postgres").
			AddRow("sales", "app", nil))

	schemas, err := in.GetSchemas(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, []core.Schema{
		{Name: "public", Database: "app", Owner: "postgres"},
		{Name: "sales", Database: "app"},
	}, schemas)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntrospector_GetTables(t *testing.T) {
	in, mock := newMockIntrospector(t)

	mock.ExpectQuery(regexp.QuoteMeta("t.table_type <> 'VIEW' AND t.table_schema = $1")).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_catalog", "table_schema", "table_name", "table_type", "reltuples", "size"}).
			AddRow("app", "public", "users", "BASE TABLE", int64(1200), int64(65536)).
			AddRow("app", "public", "remote", "FOREIGN", int64(-1), int64(0)))

	tables, err := in.GetTables(context.Background(), "", "public")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, core.Table{Name: "users", Schema: "public", Database: "app", Type: core.TableKindTable, RowCount: 1200, SizeBytes: 65536}, tables[0])
	assert.Equal(t, core.TableKindExternal, tables[1].Type)
	assert.Equal(t, int64(0), tables[1].RowCount, "never-analyzed tables report zero rows")
}

func TestIntrospector_GetColumns(t *testing.T) {
	in, mock := newMockIntrospector(t)

	mock.ExpectQuery(regexp.QuoteMeta("AND table_catalog = $1 AND table_schema = $2 AND table_name = $3")).
		WithArgs("app", "public", "users").
		WillReturnRows(sqlmock.NewRows(columnCols).
			AddRow("app", "public", "users", "id", int64(1), "integer", "NO", "nextval('users_id_seq')", nil, int64(32), int64(0)).
			AddRow("app", "public", "users", "email", int64(2), "character varying", "YES", nil, int64(255), nil, nil))

	columns, err := in.GetColumns(context.Background(), "app", "public", "users")
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.False(t, columns[0].Nullable)
	assert.Equal(t, "nextval('users_id_seq')", columns[0].DefaultValue)
	assert.Equal(t, int64(32), columns[0].Precision)
	assert.True(t, columns[1].Nullable)
	assert.Equal(t, int64(255), columns[1].MaxLength)
	assert.Equal(t, 2, columns[1].Position)
}

func TestIntrospector_GetTableStatistics(t *testing.T) {
	in, mock := newMockIntrospector(t)

	mock.ExpectQuery("FROM pg_stat_user_tables").
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"n_live_tup", "size"}).AddRow(int64(42), int64(8192)))
	mock.ExpectQuery("FROM pg_stat_user_tables").
		WithArgs("public", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"n_live_tup", "size"}))

	stats, err := in.GetTableStatistics(context.Background(), "app", "public", "users")
	require.NoError(t, err)
	assert.Equal(t, int64(42), stats.RowCount)
	assert.Equal(t, int64(8192), stats.SizeBytes)
	assert.False(t, stats.LastUpdated.IsZero())

	stats, err = in.GetTableStatistics(context.Background(), "app", "public", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.RowCount)
}

func TestIntrospector_GetIndexesAndForeignKeys(t *testing.T) {
	in, mock := newMockIntrospector(t)

	mock.ExpectQuery("FROM pg_catalog.pg_index").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"db", "schema", "table", "name", "unique", "primary", "type", "columns"}).
			AddRow("app", "public", "orders", "orders_pkey", true, true, "btree", "id").
			AddRow("app", "public", "orders", "orders_user_created_idx", false, false, "btree", "user_id,created_at"))
	mock.ExpectQuery("FROM pg_catalog.pg_constraint").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"db", "name", "schema", "table", "cols", "rschema", "rtable", "rcols", "upd", "del"}).
			AddRow("app", "orders_user_fk", "public", "orders", "user_id", "public", "users", "id", "a", "c"))

	indexes, err := in.GetIndexes(context.Background(), "", "public")
	require.NoError(t, err)
	require.Len(t, indexes, 2)
	assert.True(t, indexes[0].Primary)
	assert.Equal(t, []string{"user_id", "created_at"}, indexes[1].Columns)

	fks, err := in.GetForeignKeys(context.Background(), "", "public")
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, core.ForeignKey{
		Name:               "orders_user_fk",
		SourceTable:        "orders",
		SourceSchema:       "public",
		SourceDatabase:     "app",
		SourceColumns:      []string{"user_id"},
		ReferencedTable:    "users",
		ReferencedSchema:   "public",
		ReferencedDatabase: "app",
		ReferencedColumns:  []string{"id"},
		OnUpdate:           "NO ACTION",
		OnDelete:           "CASCADE",
	}, fks[0])
}

func TestIntrospector_GetColumnStatistics(t *testing.T) {
	in, mock := newMockIntrospector(t)

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("app", "public", "users").
		WillReturnRows(sqlmock.NewRows(columnCols).
			AddRow("app", "public", "users", "id", int64(1), "integer", "NO", nil, nil, int64(32), int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."users" TABLESAMPLE SYSTEM (1) LIMIT 1000`)).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "distinct_count", "null_count", "min_value", "max_value", "sample_values"}).
			AddRow("id", int64(10), int64(0), "1", "10", "1,2,3"))

	stats, err := in.GetColumnStatistics(context.Background(), "app", "public", "users")
	require.NoError(t, err)
	assert.Equal(t, []core.ColumnStatistics{
		{ColumnName: "id", DistinctCount: 10, MinValue: "1", MaxValue: "10", SampleValues: "1,2,3"},
	}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntrospector_GetFullIntrospection(t *testing.T) {
	in, mock := newMockIntrospector(t)

	mock.ExpectQuery("FROM pg_catalog.pg_database").
		WillReturnRows(sqlmock.NewRows([]string{"datname", "owner", "comment"}).
			AddRow("app", "postgres", nil).
			AddRow("other", "postgres", nil))
	mock.ExpectQuery("FROM information_schema.schemata").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name", "catalog_name", "schema_owner"}).
			AddRow("public", "app", "postgres"))
	mock.ExpectQuery("FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"c", "s", "n", "t", "r", "b"}).
			AddRow("app", "public", "users", "BASE TABLE", int64(3), int64(0)))
	mock.ExpectQuery("FROM information_schema.columns").
		WillReturnRows(sqlmock.NewRows(columnCols).
			AddRow("app", "public", "users", "id", int64(1), "integer", "NO", nil, nil, nil, nil))
	mock.ExpectQuery("FROM information_schema.views").
		WillReturnRows(sqlmock.NewRows([]string{"c", "s", "n", "d"}))
	mock.ExpectQuery("FROM pg_catalog.pg_index").
		WillReturnRows(sqlmock.NewRows([]string{"db", "schema", "table", "name", "unique", "primary", "type", "columns"}))
	mock.ExpectQuery("FROM pg_catalog.pg_constraint").
		WillReturnRows(sqlmock.NewRows([]string{"db", "name", "schema", "table", "cols", "rschema", "rtable", "rcols", "upd", "del"}))
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("app", "public", "users").
		WillReturnRows(sqlmock.NewRows(columnCols).
			AddRow("app", "public", "users", "id", int64(1), "integer", "NO", nil, nil, nil, nil))
	mock.ExpectQuery("WITH raw_stats").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "distinct_count", "null_count", "min_value", "max_value", "sample_values"}).
			AddRow("id", int64(3), int64(0), "1", "3", "1,2,3"))

	result, err := in.GetFullIntrospection(context.Background(), &core.IntrospectOptions{Schemas: []string{"public"}})
	require.NoError(t, err)

	assert.Equal(t, core.TypePostgres, result.DataSourceType)
	assert.Equal(t, []core.Database{{Name: "app", Owner: "postgres"}}, result.Databases, "schema filter narrows databases")
	require.Len(t, result.Columns, 1)
	assert.Equal(t, int64(3), result.Columns[0].DistinctCount)
	assert.Equal(t, "1,2,3", result.Columns[0].SampleValues)
	assert.Empty(t, result.Views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntrospector_EmptyFilter(t *testing.T) {
	in, _ := newMockIntrospector(t)

	_, err := in.GetFullIntrospection(context.Background(), &core.IntrospectOptions{Databases: []string{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyFilterArray)
	assert.Equal(t, "Database filter array is empty. Please provide at least one database name or remove the filter.", err.Error())
}
