package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/leapstack-labs/warehouse/pkg/core"
)

// Placeholder formats the n-th (1-based) bind parameter of a dialect.
type Placeholder func(n int) string

// Bind parameter styles.
var (
	DollarPlaceholder   Placeholder = func(n int) string { return "$" + strconv.Itoa(n) }
	QuestionPlaceholder Placeholder = func(int) string { return "?" }
	AtPPlaceholder      Placeholder = func(n int) string { return "@p" + strconv.Itoa(n) }
)

// Where accumulates AND-ed catalog query conditions with bind parameters.
type Where struct {
	ph      Placeholder
	clauses []string
	args    []any
}

// NewWhere starts a condition list. fixed conditions carry no parameters.
func NewWhere(ph Placeholder, fixed ...string) *Where {
	return &Where{ph: ph, clauses: fixed}
}

// Eq adds column = value unless value is empty.
func (w *Where) Eq(column, value string) *Where {
	if value == "" {
		return w
	}
	w.args = append(w.args, value)
	w.clauses = append(w.clauses, column+" = "+w.ph(len(w.args)))
	return w
}

// SQL renders the conditions as a WHERE clause, or "" when there are none.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Args returns the bind values in placeholder order.
func (w *Where) Args() []any {
	return w.args
}

// StatsDialect supplies the engine-specific fragments of the column statistics query.
type StatsDialect struct {
	// Quote quotes an identifier.
	Quote func(ident string) string
	// Text casts an expression to the engine's string type.
	Text func(expr string) string
	// Agg aggregates string expressions into one comma-separated value.
	Agg func(expr string) string
	// Sample selects a bounded sample of rows from a fully qualified table.
	Sample func(table string) string
	// Distinct selects up to n distinct non-null values of col from sample_data.
	Distinct func(col string, n int) string
}

// sampleSize is the number of distinct sample values collected per column.
const sampleSize = 20

// BuildColumnStatsQuery builds a single-scan statistics query for columns of
// table. Each result row has column_name, distinct_count, null_count,
// min_value, max_value and sample_values.
func BuildColumnStatsQuery(d StatsDialect, table string, columns []core.Column) string {
	raw := make([]string, 0, len(columns))
	samples := make([]string, 0, len(columns))
	stats := make([]string, 0, len(columns))

	for _, c := range columns {
		col := d.Quote(c.Name)
		alias := SanitizeAlias(c.Name)
		ranged := IsNumericType(c.DataType) || IsDateType(c.DataType)

		sel := fmt.Sprintf("COUNT(DISTINCT %s) AS distinct_count_%s, COUNT(*) - COUNT(%s) AS null_count_%s",
			col, alias, col, alias)
		if ranged {
			sel += fmt.Sprintf(", MIN(%s) AS min_%s, MAX(%s) AS max_%s", col, alias, col, alias)
		}
		raw = append(raw, sel)

		samples = append(samples, fmt.Sprintf(
			"SELECT %s AS column_name, %s AS sample_values FROM (%s) samples",
			quoteLiteral(c.Name), d.Agg(d.Text("sample_val")), d.Distinct(col, sampleSize)))

		minMax := "NULL AS min_value, NULL AS max_value"
		if ranged {
			minMax = fmt.Sprintf("%s AS min_value, %s AS max_value",
				d.Text("rs.min_"+alias), d.Text("rs.max_"+alias))
		}
		stats = append(stats, fmt.Sprintf(
			"SELECT %s AS column_name, rs.distinct_count_%s AS distinct_count, rs.null_count_%s AS null_count, %s FROM raw_stats rs",
			quoteLiteral(c.Name), alias, alias, minMax))
	}

	return fmt.Sprintf(`WITH raw_stats AS (
    SELECT %s
    FROM %s
),
sample_data AS (
    %s
),
sample_values AS (
    %s
),
stats AS (
    %s
)
SELECT s.column_name, s.distinct_count, s.null_count, s.min_value, s.max_value, sv.sample_values
FROM stats s
LEFT JOIN sample_values sv ON s.column_name = sv.column_name
ORDER BY s.column_name`,
		strings.Join(raw, ",\n        "),
		table,
		d.Sample(table),
		strings.Join(samples, "\n    UNION ALL\n    "),
		strings.Join(stats, "\n    UNION ALL\n    "))
}

// ScanColumnStatistics runs a query built by BuildColumnStatsQuery.
func ScanColumnStatistics(ctx context.Context, q Queryer, query string) ([]core.ColumnStatistics, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query column statistics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.ColumnStatistics
	for rows.Next() {
		var (
			s                          core.ColumnStatistics
			distinct, nulls            sql.NullInt64
			minVal, maxVal, sampleVals sql.NullString
		)
		if err := rows.Scan(&s.ColumnName, &distinct, &nulls, &minVal, &maxVal, &sampleVals); err != nil {
			return nil, fmt.Errorf("failed to scan column statistics: %w", err)
		}
		s.DistinctCount = distinct.Int64
		s.NullCount = nulls.Int64
		s.MinValue = minVal.String
		s.MaxValue = maxVal.String
		s.SampleValues = sampleVals.String
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column statistics: %w", err)
	}
	return out, nil
}

// CollectRows runs query on q and maps every row with scan. The result is
// never nil.
func CollectRows[T any](ctx context.Context, q Queryer, query string, args []any, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SplitList splits a comma-separated catalog aggregate, dropping blanks.
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var (
	numericTypes = []string{
		"integer", "bigint", "smallint", "tinyint", "mediumint", "int2", "int4", "int8", "int64",
		"decimal", "numeric", "number", "real", "double", "float", "serial", "money",
	}
	dateTypes = []string{"date", "time", "timestamp"}
	nonAlias  = regexp.MustCompile(`[^a-zA-Z0-9_]`)
)

// IsNumericType reports whether a catalog data type is numeric.
func IsNumericType(dataType string) bool {
	dt := strings.ToLower(dataType)
	return dt == "int" || strings.HasPrefix(dt, "int(") || containsAny(dt, numericTypes)
}

// IsDateType reports whether a catalog data type is temporal.
func IsDateType(dataType string) bool {
	return containsAny(strings.ToLower(dataType), dateTypes)
}

// SanitizeAlias turns a column name into a safe lower-case alias suffix.
func SanitizeAlias(name string) string {
	alias := strings.ToLower(nonAlias.ReplaceAllString(name, "_"))
	if alias != "" && alias[0] >= '0' && alias[0] <= '9' {
		alias = "_" + alias
	}
	return alias
}

// QuoteDouble quotes an identifier with double quotes.
func QuoteDouble(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// QuoteBacktick quotes an identifier with backticks.
func QuoteBacktick(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// QuoteBracket quotes an identifier with square brackets.
func QuoteBracket(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// MapTableType normalizes information_schema table_type values.
func MapTableType(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "VIEW":
		return core.TableKindView
	case "MATERIALIZED VIEW", "MATERIALIZED_VIEW":
		return core.TableKindMaterialized
	case "FOREIGN", "FOREIGN TABLE", "EXTERNAL TABLE", "EXTERNAL":
		return core.TableKindExternal
	case "LOCAL TEMPORARY", "TEMPORARY", "TEMPORARY TABLE", "GLOBAL TEMPORARY":
		return core.TableKindTemporary
	default:
		return core.TableKindTable
	}
}
