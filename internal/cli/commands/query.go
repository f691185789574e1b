package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/warehouse/internal/cli/output"
	"github.com/leapstack-labs/warehouse/pkg/datasource"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Warehouse string
	MaxRows   int
	Timeout   time.Duration
	Format    string
	Input     string
	Params    []string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run a SQL query on a warehouse",
		Long: `Run a SQL query on one of the configured warehouses.

SQL is taken from the arguments, from --input, or from stdin when piped.
Use ? placeholders and --param to bind values; they are translated to each
engine's native placeholder syntax.

Output adapts to environment:
  - Terminal: table
  - Piped/Scripted: Markdown table
Use --format to override: table, json, csv, md`,
		Example: `  # Query the default warehouse
  warehouse query "SELECT * FROM orders LIMIT 10"

  # Query a named warehouse with parameters
  warehouse query -w analytics "SELECT * FROM users WHERE id = ? AND name = ?" -p 42 -p test

  # Stop after 1000 rows and export as CSV
  warehouse query --max-rows 1000 --format csv "SELECT * FROM events" > events.csv

  # Read SQL from a file
  warehouse query --input report.sql --timeout 5m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Warehouse, "warehouse", "w", "", "Warehouse to query (default: configured default)")
	cmd.Flags().IntVarP(&opts.MaxRows, "max-rows", "n", 0, "Maximum rows to return (0 = unlimited)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Query timeout (default: engine default)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "Positional parameter value (repeatable)")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return queryFormats, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("warehouse", completeWarehouses)

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cc, err := GetCommandContext(cmd)
	if err != nil {
		return err
	}

	sqlQuery, err := readSQL(cmd, args, opts.Input)
	if err != nil {
		return err
	}

	resp, err := cc.DataSource.Execute(cmd.Context(), datasource.Request{
		SQL:       sqlQuery,
		Params:    parseParams(opts.Params),
		Warehouse: opts.Warehouse,
		Options:   datasource.QueryOptions{MaxRows: opts.MaxRows, Timeout: opts.Timeout},
	})
	if err != nil {
		return err
	}

	format := resolveFormat(opts.Format, cc.Renderer)
	if !resp.Success && format != formatJSON {
		return fmt.Errorf("query failed on '%s': %s", resp.Warehouse, resp.Error.Message)
	}
	if err := renderResponse(cc.Renderer.Writer(), resp, format); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("query failed on '%s': %s", resp.Warehouse, resp.Error.Message)
	}
	return nil
}

// readSQL takes SQL from the arguments, then --input, then piped stdin.
func readSQL(cmd *cobra.Command, args []string, input string) (string, error) {
	var sqlQuery string
	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case input != "":
		content, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	default:
		in := cmd.InOrStdin()
		if f, ok := in.(*os.File); ok && output.IsTerminal(f) {
			return "", errors.New("no SQL given\nHint: Pass SQL as an argument, use --input, pipe it on stdin, or run 'warehouse shell'")
		}
		content, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	}

	sqlQuery = strings.TrimSpace(sqlQuery)
	if sqlQuery == "" {
		return "", errors.New("empty SQL query")
	}
	return sqlQuery, nil
}

// parseParams converts --param values: integers, floats, true/false and null
// are typed, anything else is bound as a string.
func parseParams(raw []string) []any {
	if len(raw) == 0 {
		return nil
	}
	params := make([]any, len(raw))
	for i, s := range raw {
		params[i] = parseParam(s)
	}
	return params
}

func parseParam(s string) any {
	if s == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

// completeWarehouses offers configured warehouse names for completion.
func completeWarehouses(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	cc, err := GetCommandContext(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return cc.DataSource.DataSources(), cobra.ShellCompDirectiveNoFileComp
}
