package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/warehouse/pkg/datasource"
)

// Result formats accepted by --format.
const (
	formatTable    = "table"
	formatText     = "text"
	formatJSON     = "json"
	formatCSV      = "csv"
	formatMD       = "md"
	formatMarkdown = "markdown"
)

var queryFormats = []string{formatTable, formatJSON, formatCSV, formatMD}

func renderResponse(w io.Writer, resp *datasource.Response, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case formatCSV:
		return renderCSV(w, columnNames(resp), resp.Rows)
	case formatMD, formatMarkdown:
		renderTable(w, resp, true)
		return nil
	case formatTable, formatText, "":
		renderTable(w, resp, false)
		return nil
	default:
		return fmt.Errorf("unknown format %q\nHint: Use one of %v", format, queryFormats)
	}
}

// columnNames returns the result columns in engine order. Results without
// field metadata fall back to the sorted keys of the first row.
func columnNames(resp *datasource.Response) []string {
	if len(resp.Columns) > 0 {
		names := make([]string, len(resp.Columns))
		for i, c := range resp.Columns {
			names[i] = c.Name
		}
		return names
	}
	if len(resp.Rows) == 0 {
		return nil
	}
	names := make([]string, 0, len(resp.Rows[0]))
	for k := range resp.Rows[0] {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func renderTable(w io.Writer, resp *datasource.Response, markdown bool) {
	if len(resp.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	cols := columnNames(resp)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, result := range resp.Rows {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(result[col])
		}
		t.AppendRow(row)
	}

	if markdown {
		t.RenderMarkdown()
		_, _ = fmt.Fprintln(w)
	} else {
		t.Render()
	}
	_, _ = fmt.Fprintln(w, rowSummary(resp))
}

func rowSummary(resp *datasource.Response) string {
	s := fmt.Sprintf("(%d rows", len(resp.Rows))
	if resp.Metadata != nil && resp.Metadata.Limited {
		s += fmt.Sprintf(", limited to %d", resp.Metadata.MaxRows)
	}
	return s + fmt.Sprintf(", %s)", resp.ExecutionTime.Round(time.Millisecond))
}

func renderCSV(w io.Writer, cols []string, rows []map[string]any) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	record := make([]string, len(cols))
	for _, result := range rows {
		for i, col := range cols {
			if v := result[col]; v != nil {
				record[i] = formatValue(v)
			} else {
				record[i] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}
