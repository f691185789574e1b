package commands

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/leapstack-labs/warehouse/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewTestCommand creates the test command.
func NewTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test [warehouse]",
		Short: "Test warehouse connections",
		Long: `Connect to warehouses and run a trivial query on each.

Without an argument every configured warehouse is tested concurrently.
Exits non-zero if any warehouse fails.`,
		Example: `  # Test every warehouse
  warehouse test

  # Test one warehouse
  warehouse test analytics`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeWarehouses,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCommandContext(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var results map[string]bool
			if len(args) == 1 {
				if _, ok := cc.DataSource.DataSourceConfig(args[0]); !ok {
					return fmt.Errorf("warehouse '%s' is not configured\nHint: Run 'warehouse list' to see configured warehouses", args[0])
				}
				results = map[string]bool{args[0]: cc.DataSource.TestDataSource(ctx, args[0])}
			} else {
				results = cc.DataSource.TestAllDataSources(ctx)
			}

			if err := renderTestResults(cc.Renderer, results); err != nil {
				return err
			}
			return testFailure(results)
		},
	}
}

func renderTestResults(r *output.Renderer, results map[string]bool) error {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	slices.Sort(names)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		enc := json.NewEncoder(r.Writer())
		enc.SetIndent("", "  ")
		return enc.Encode(results)

	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Connection test"))
		r.Println("")
		for _, name := range names {
			status := "ok"
			if !results[name] {
				status = "failed"
			}
			r.Println(output.FormatKeyValue(name, status))
		}

	default:
		if len(names) == 0 {
			r.Muted("No warehouses configured.")
		}
		for _, name := range names {
			r.StatusLine(name, results[name], "")
		}
		if len(names) > 0 && testFailure(results) == nil {
			r.Success(fmt.Sprintf("All warehouses reachable (%d)", len(names)))
		}
	}
	return nil
}

func testFailure(results map[string]bool) error {
	failed := 0
	for _, ok := range results {
		if !ok {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d warehouses failed the connection test\nHint: Run with --verbose for connection errors", failed, len(results))
}
