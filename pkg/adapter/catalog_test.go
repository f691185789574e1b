package adapter

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/warehouse/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhere(t *testing.T) {
	tests := []struct {
		name     string
		build    func() *Where
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "nothing",
			build:   func() *Where { return NewWhere(DollarPlaceholder) },
			wantSQL: "",
		},
		{
			name: "fixed only",
			build: func() *Where {
				return NewWhere(DollarPlaceholder, "table_schema NOT IN ('pg_catalog')")
			},
			wantSQL: " WHERE table_schema NOT IN ('pg_catalog')",
		},
		{
			name: "empty values skipped",
			build: func() *Where {
				return NewWhere(DollarPlaceholder).Eq("table_catalog", "").Eq("table_schema", "public")
			},
			wantSQL:  " WHERE table_schema = $1",
			wantArgs: []any{"public"},
		},
		{
			name: "question marks",
			build: func() *Where {
				return NewWhere(QuestionPlaceholder).Eq("a", "x").Eq("b", "y")
			},
			wantSQL:  " WHERE a = ? AND b = ?",
			wantArgs: []any{"x", "y"},
		},
		{
			name: "sqlserver style",
			build: func() *Where {
				return NewWhere(AtPPlaceholder, "1=1").Eq("s.name", "dbo").Eq("t.name", "orders")
			},
			wantSQL:  " WHERE 1=1 AND s.name = @p1 AND t.name = @p2",
			wantArgs: []any{"dbo", "orders"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.build()
			assert.Equal(t, tt.wantSQL, w.SQL())
			assert.Equal(t, tt.wantArgs, w.Args())
		})
	}
}

func TestTypeHelpers(t *testing.T) {
	numeric := []string{"integer", "BIGINT", "int", "int(11)", "numeric(10,2)", "double precision", "NUMBER", "float64", "INT64"}
	for _, dt := range numeric {
		assert.True(t, IsNumericType(dt), dt)
	}
	notNumeric := []string{"interval", "point", "text", "uuid"}
	for _, dt := range notNumeric {
		assert.False(t, IsNumericType(dt), dt)
	}

	assert.True(t, IsDateType("timestamp with time zone"))
	assert.True(t, IsDateType("DATE"))
	assert.False(t, IsDateType("varchar"))
}

func TestSanitizeAlias(t *testing.T) {
	assert.Equal(t, "order_id", SanitizeAlias("Order ID"))
	assert.Equal(t, "_1st", SanitizeAlias("1st"))
	assert.Equal(t, "a_b", SanitizeAlias("a-b"))
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"we""ird"`, QuoteDouble(`we"ird`))
	assert.Equal(t, "`a``b`", QuoteBacktick("a`b"))
	assert.Equal(t, "[a]]b]", QuoteBracket("a]b"))
}

var testStatsDialect = StatsDialect{
	Quote:    QuoteDouble,
	Text:     func(expr string) string { return expr + "::text" },
	Agg:      func(expr string) string { return "string_agg(" + expr + ", ',')" },
	Sample:   func(table string) string { return "SELECT * FROM " + table + " LIMIT 1000" },
	Distinct: func(col string, n int) string { return "SELECT DISTINCT " + col + " AS sample_val FROM sample_data LIMIT 20" },
}

func TestBuildColumnStatsQuery(t *testing.T) {
	cols := []core.Column{
		{Name: "id", DataType: "integer"},
		{Name: "email", DataType: "text"},
	}

	q := BuildColumnStatsQuery(testStatsDialect, `"public"."users"`, cols)

	assert.Contains(t, q, `COUNT(DISTINCT "id") AS distinct_count_id`)
	assert.Contains(t, q, `MIN("id") AS min_id`)
	assert.NotContains(t, q, "min_email", "text columns have no range")
	assert.Contains(t, q, "rs.min_id::text AS min_value")
	assert.Contains(t, q, "NULL AS min_value, NULL AS max_value")
	assert.Contains(t, q, `FROM "public"."users"`)
	assert.Contains(t, q, `SELECT * FROM "public"."users" LIMIT 1000`)
	assert.Contains(t, q, "'email' AS column_name")
	assert.Contains(t, q, "LEFT JOIN sample_values sv ON s.column_name = sv.column_name")
}

func TestScanColumnStatistics(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("WITH raw_stats").WillReturnRows(
		sqlmock.NewRows([]string{"column_name", "distinct_count", "null_count", "min_value", "max_value", "sample_values"}).
			AddRow("email", 90, 2, nil, nil, "a@x.io,b@x.io").
			AddRow("id", 100, 0, "1", "100", "1,2,3"))

	stats, err := ScanColumnStatistics(context.Background(), db, "WITH raw_stats AS (SELECT 1) SELECT 1")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, core.ColumnStatistics{ColumnName: "email", DistinctCount: 90, NullCount: 2, SampleValues: "a@x.io,b@x.io"}, stats[0])
	assert.Equal(t, "1", stats[1].MinValue)
	assert.Equal(t, "100", stats[1].MaxValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT name FROM things").
		WithArgs("x").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a").AddRow("b"))
	mock.ExpectQuery("SELECT name FROM nothing").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	scan := func(rows *sql.Rows) (string, error) {
		var s string
		err := rows.Scan(&s)
		return s, err
	}

	names, err := CollectRows(context.Background(), db, "SELECT name FROM things WHERE k = ?", []any{"x"}, scan)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	empty, err := CollectRows(context.Background(), db, "SELECT name FROM nothing", nil, scan)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList("a, b,"))
	assert.Equal(t, []string{}, SplitList(""))
}
