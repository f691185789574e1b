package bigquery

import (
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

// normalizeValue turns a BigQuery value into a JSON-friendly one. Timestamps
// become RFC3339 strings and civil date/time values use their canonical form.
func normalizeValue(field *bigquery.FieldSchema, v bigquery.Value) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case *big.Rat:
		if field != nil && field.Type == bigquery.BigNumericFieldType {
			return bigquery.BigNumericString(val)
		}
		return bigquery.NumericString(val)
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case []bigquery.Value:
		if field != nil && !field.Repeated && field.Type == bigquery.RecordFieldType {
			return recordValue(field.Schema, val)
		}
		elem := field
		if field != nil {
			elem = &bigquery.FieldSchema{Type: field.Type, Schema: field.Schema}
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(elem, item)
		}
		return out
	case fmt.Stringer:
		return val.String()
	default:
		return val
	}
}

func recordValue(schema bigquery.Schema, values []bigquery.Value) map[string]any {
	out := make(map[string]any, len(values))
	for i, v := range values {
		name := "f" + strconv.Itoa(i)
		var field *bigquery.FieldSchema
		if i < len(schema) {
			field = schema[i]
			name = field.Name
		}
		out[name] = normalizeValue(field, v)
	}
	return out
}

// fieldsOf converts a result schema to field metadata.
func fieldsOf(schema bigquery.Schema) []core.FieldMetadata {
	fields := make([]core.FieldMetadata, len(schema))
	for i, f := range schema {
		typ := string(f.Type)
		if f.Repeated {
			typ = "ARRAY<" + typ + ">"
		}
		fields[i] = core.FieldMetadata{
			Name:      f.Name,
			Type:      typ,
			Nullable:  !f.Required,
			Length:    f.MaxLength,
			Precision: f.Precision,
			Scale:     f.Scale,
		}
	}
	return fields
}

// toResult maps positional rows onto column names, truncating to maxRows.
func toResult(resp *queryResponse, maxRows int) *core.QueryResult {
	rows := resp.rows
	hasMore := false
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
		hasMore = true
	}

	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = recordValue(resp.schema, row)
	}
	return &core.QueryResult{
		Rows:        out,
		RowCount:    len(out),
		Fields:      fieldsOf(resp.schema),
		HasMoreRows: hasMore,
	}
}

func valueString(v bigquery.Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(normalizeValue(nil, val))
	}
}

func valueInt(v bigquery.Value) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case float64:
		return int64(val)
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}
