package adapter

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/warehouse/pkg/core"
)

// ReadRows drains rows into a QueryResult. When maxRows > 0 it reads at most
// maxRows+1 rows: the extra row only sets HasMoreRows and is discarded.
// The caller still owns rows and must close it.
func ReadRows(rows *sql.Rows, maxRows int) (*core.QueryResult, error) {
	fields, err := FieldsOf(rows)
	if err != nil {
		return nil, err
	}

	result := &core.QueryResult{
		Rows:   make([]map[string]any, 0),
		Fields: fields,
	}

	values := make([]any, len(fields))
	ptrs := make([]any, len(fields))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if maxRows > 0 && len(result.Rows) == maxRows {
			result.HasMoreRows = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[f.Name] = NormalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// LimitRows truncates an already materialized result to maxRows.
func LimitRows(result *core.QueryResult, maxRows int) *core.QueryResult {
	if maxRows > 0 && len(result.Rows) > maxRows {
		result.Rows = result.Rows[:maxRows]
		result.HasMoreRows = true
	}
	result.RowCount = len(result.Rows)
	return result
}

// FieldsOf converts the driver's column types to FieldMetadata. Nullability
// defaults to true when the driver does not report it.
func FieldsOf(rows *sql.Rows) ([]core.FieldMetadata, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column metadata: %w", err)
	}

	fields := make([]core.FieldMetadata, len(types))
	for i, ct := range types {
		f := core.FieldMetadata{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: true,
		}
		if nullable, ok := ct.Nullable(); ok {
			f.Nullable = nullable
		}
		if length, ok := ct.Length(); ok {
			f.Length = length
		}
		if precision, scale, ok := ct.DecimalSize(); ok {
			f.Precision = precision
			f.Scale = scale
		}
		if f.Type == "" {
			f.Type = "unknown"
		}
		fields[i] = f
	}
	return fields, nil
}

// NormalizeValue converts driver-specific scan results to plain values.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return v
	}
}

// QueryRows runs query on q and reads the result with ReadRows.
func QueryRows(ctx context.Context, q Queryer, query string, args []any, maxRows int) (*core.QueryResult, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return ReadRows(rows, maxRows)
}
