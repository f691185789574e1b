package commands

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/warehouse/internal/cli/output"
	"github.com/leapstack-labs/warehouse/pkg/datasource"
	"github.com/spf13/cobra"
)

// WarehouseInfo is one entry of `list --output json`.
type WarehouseInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default bool   `json:"default"`
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured warehouses",
		Long: `List the warehouses defined in the configuration file.

No connections are opened. Use 'warehouse test' to check connectivity.`,
		Example: `  # List warehouses
  warehouse list

  # List warehouses as JSON
  warehouse list --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := GetCommandContext(cmd)
			if err != nil {
				return err
			}
			return renderWarehouses(cc.Renderer, warehouseInfos(cc.DataSource))
		},
	}
}

func warehouseInfos(ds *datasource.DataSource) []WarehouseInfo {
	def := ds.DefaultDataSource()
	names := ds.DataSources()
	if def == "" && len(names) == 1 {
		def = names[0]
	}

	infos := make([]WarehouseInfo, 0, len(names))
	for _, name := range names {
		cfg, _ := ds.DataSourceConfig(name)
		infos = append(infos, WarehouseInfo{
			Name:    name,
			Type:    cfg.Type.String(),
			Default: name == def,
		})
	}
	return infos
}

func renderWarehouses(r *output.Renderer, infos []WarehouseInfo) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		enc := json.NewEncoder(r.Writer())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)

	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fmt.Sprintf("Warehouses (%d)", len(infos))))
		r.Println("")
		for _, w := range infos {
			line := output.FormatKeyValue(w.Name, w.Type)
			if w.Default {
				line += " (default)"
			}
			r.Println(line)
		}
		return nil

	default:
		if len(infos) == 0 {
			r.Muted("No warehouses configured.")
			return nil
		}
		t := table.NewWriter()
		t.SetOutputMirror(r.Writer())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Name", "Type", "Default"})
		for _, w := range infos {
			mark := ""
			if w.Default {
				mark = "*"
			}
			t.AppendRow(table.Row{w.Name, w.Type, mark})
		}
		t.Render()
		return nil
	}
}
