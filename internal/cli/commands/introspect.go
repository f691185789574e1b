package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/warehouse/internal/cli/output"
	"github.com/leapstack-labs/warehouse/pkg/core"
	"github.com/spf13/cobra"
)

// IntrospectOptions holds options for the introspect command.
type IntrospectOptions struct {
	Databases []string
	Schemas   []string
	Tables    []string
	Format    string
}

// NewIntrospectCommand creates the introspect command.
func NewIntrospectCommand() *cobra.Command {
	opts := &IntrospectOptions{}

	cmd := &cobra.Command{
		Use:   "introspect [warehouse]",
		Short: "Show databases, schemas, tables and columns of a warehouse",
		Long: `Take a metadata snapshot of a warehouse: databases, schemas, tables,
columns with statistics, views, indexes and foreign keys.

Filters match names exactly and may be repeated or comma-separated.
An explicitly empty filter (e.g. --tables "") is rejected.`,
		Example: `  # Snapshot the default warehouse
  warehouse introspect

  # Only two tables of one schema, as JSON
  warehouse introspect analytics --schemas public --tables orders,customers --format json`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeWarehouses,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntrospect(cmd, args, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Databases, "databases", nil, "Only these databases")
	cmd.Flags().StringSliceVar(&opts.Schemas, "schemas", nil, "Only these schemas")
	cmd.Flags().StringSliceVar(&opts.Tables, "tables", nil, "Only these tables")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json, md")

	return cmd
}

func runIntrospect(cmd *cobra.Command, args []string, opts *IntrospectOptions) error {
	cc, err := GetCommandContext(cmd)
	if err != nil {
		return err
	}

	name := ""
	if len(args) == 1 {
		name = args[0]
	}

	filter := &core.IntrospectOptions{
		Databases: changedSlice(cmd, "databases", opts.Databases),
		Schemas:   changedSlice(cmd, "schemas", opts.Schemas),
		Tables:    changedSlice(cmd, "tables", opts.Tables),
	}

	result, err := cc.DataSource.GetFullIntrospection(cmd.Context(), name, filter)
	if err != nil {
		return fmt.Errorf("failed to introspect: %w", err)
	}

	switch output.Mode(resolveFormat(opts.Format, cc.Renderer)) {
	case output.ModeJSON:
		enc := json.NewEncoder(cc.Renderer.Writer())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case output.ModeMarkdown:
		introspectMarkdown(cc.Renderer, result)
	default:
		introspectText(cc.Renderer, result)
	}
	if len(result.Tables) == 0 && (filter.Databases != nil || filter.Schemas != nil || filter.Tables != nil) {
		cc.Renderer.Warn("No tables matched the filters (matching is case-sensitive)")
	}
	return nil
}

// changedSlice returns nil for an unset flag and a non-nil slice for a set
// one, so an explicitly empty filter reaches validation.
func changedSlice(cmd *cobra.Command, flag string, v []string) []string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	if v == nil {
		return []string{}
	}
	return v
}

func introspectText(r *output.Renderer, res *core.IntrospectionResult) {
	r.Header(1, fmt.Sprintf("%s (%s)", res.DataSourceName, res.DataSourceType))
	r.Muted(fmt.Sprintf("%d databases, %d schemas, %d tables, %d views, %d columns",
		len(res.Databases), len(res.Schemas), len(res.Tables), len(res.Views), len(res.Columns)))

	if len(res.Tables) == 0 {
		return
	}

	columns := columnCounts(res.Columns)
	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Database", "Schema", "Table", "Type", "Rows", "Columns"})
	for _, tbl := range res.Tables {
		t.AppendRow(table.Row{tbl.Database, tbl.Schema, tbl.Name, tbl.Type, tbl.RowCount, columns[tableKey(tbl.Database, tbl.Schema, tbl.Name)]})
	}
	t.Render()
}

func introspectMarkdown(r *output.Renderer, res *core.IntrospectionResult) {
	r.Println(output.FormatHeader(1, fmt.Sprintf("%s (%s)", res.DataSourceName, res.DataSourceType)))
	r.Println("")
	r.Println(output.FormatKeyValue("Databases", joinNames(res.Databases, func(d core.Database) string { return d.Name })))
	r.Println(output.FormatKeyValue("Schemas", joinNames(res.Schemas, func(s core.Schema) string { return s.Database + "." + s.Name })))
	r.Println(output.FormatKeyValue("Views", joinNames(res.Views, func(v core.View) string { return v.Schema + "." + v.Name })))

	byTable := make(map[string][]core.Column)
	for _, c := range res.Columns {
		key := tableKey(c.Database, c.Schema, c.Table)
		byTable[key] = append(byTable[key], c)
	}

	for _, tbl := range res.Tables {
		r.Println("")
		r.Println(output.FormatHeader(2, fmt.Sprintf("%s.%s", tbl.Schema, tbl.Name)))
		r.Println("")
		r.Println(output.FormatKeyValue("Rows", fmt.Sprintf("%d", tbl.RowCount)))
		if tbl.Comment != "" {
			r.Println(output.FormatKeyValue("Comment", tbl.Comment))
		}
		cols := byTable[tableKey(tbl.Database, tbl.Schema, tbl.Name)]
		if len(cols) == 0 {
			continue
		}
		r.Println("")
		r.Println("| Column | Type | Nullable | Distinct | Nulls |")
		r.Println("| --- | --- | --- | --- | --- |")
		for _, c := range cols {
			r.Printf("| %s | %s | %t | %d | %d |\n", c.Name, c.DataType, c.Nullable, c.DistinctCount, c.NullCount)
		}
	}
}

func columnCounts(cols []core.Column) map[string]int {
	counts := make(map[string]int)
	for _, c := range cols {
		counts[tableKey(c.Database, c.Schema, c.Table)]++
	}
	return counts
}

func tableKey(database, schema, table string) string {
	return database + "\x00" + schema + "\x00" + table
}

func joinNames[T any](items []T, name func(T) string) string {
	if len(items) == 0 {
		return "(none)"
	}
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = name(item)
	}
	return strings.Join(names, ", ")
}
