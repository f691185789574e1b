package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/warehouse/internal/config"
	"github.com/leapstack-labs/warehouse/pkg/datasource"
	"github.com/spf13/cobra"
)

const (
	shellPrompt     = "warehouse> "
	shellContPrompt = "      ...> "
	historyFileName = ".warehouse_history"
)

// ShellOptions holds options for the shell command.
type ShellOptions struct {
	Warehouse string
	MaxRows   int
	Format    string
}

// NewShellCommand creates the interactive shell command.
func NewShellCommand() *cobra.Command {
	opts := &ShellOptions{}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive SQL shell",
		Long: `Start an interactive SQL shell.

Statements end with a semicolon and may span lines. Dot-commands switch
warehouses and inspect metadata. The configuration file is watched and
warehouse changes are applied without restarting.`,
		Example: `  # Start the shell on the default warehouse
  warehouse shell

  # Start on a named warehouse, capping results at 100 rows
  warehouse shell -w analytics --max-rows 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Warehouse, "warehouse", "w", "", "Initial warehouse")
	cmd.Flags().IntVarP(&opts.MaxRows, "max-rows", "n", 1000, "Maximum rows per query (0 = unlimited)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", formatTable, "Output format: table, json, csv, md")
	_ = cmd.RegisterFlagCompletionFunc("warehouse", completeWarehouses)

	return cmd
}

func runShell(cmd *cobra.Command, opts *ShellOptions) error {
	cc, err := GetCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     historyFile(),
		AutoComplete:    dotCommandCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	sh := newShell(cc.DataSource, rl.Stdout(), rl.Stderr(), opts)
	if opts.Warehouse != "" {
		sh.use(opts.Warehouse)
	}

	if cc.Cfg != nil && cc.Cfg.Path != "" {
		go func() {
			if err := config.Watch(ctx, cc.Cfg.Path, cc.Logger, func(cfg *config.Config) {
				sh.reload(ctx, cfg)
			}); err != nil {
				cc.Logger.Warn("config watch stopped", "error", err)
			}
		}()
	}

	_, _ = fmt.Fprintln(sh.out, "warehouse shell. Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(sh.out)

	for {
		rl.SetPrompt(sh.prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			sh.buf.Reset()
			continue
		}
		if err != nil {
			break
		}
		if sh.handleLine(ctx, line) {
			break
		}
	}
	return nil
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, historyFileName)
}

func dotCommandCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".warehouses"),
		readline.PcItem(".use"),
		readline.PcItem(".tables"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}

// shell is the line-oriented state of an interactive session.
type shell struct {
	ds     *datasource.DataSource
	out    io.Writer
	errOut io.Writer
	opts   ShellOptions

	mu      sync.Mutex
	current string

	buf strings.Builder
}

func newShell(ds *datasource.DataSource, out, errOut io.Writer, opts *ShellOptions) *shell {
	return &shell{ds: ds, out: out, errOut: errOut, opts: *opts}
}

func (s *shell) warehouse() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *shell) prompt() string {
	if s.buf.Len() > 0 {
		return shellContPrompt
	}
	if w := s.warehouse(); w != "" {
		return "warehouse(" + w + ")> "
	}
	return shellPrompt
}

// handleLine processes one input line and reports whether to quit.
func (s *shell) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if s.buf.Len() == 0 && strings.HasPrefix(line, ".") {
		return s.dotCommand(ctx, line)
	}

	// Accumulate multi-line SQL until semicolon
	s.buf.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		s.buf.WriteString("\n")
		return false
	}
	query := strings.TrimSpace(strings.TrimSuffix(s.buf.String(), ";"))
	s.buf.Reset()

	if err := s.run(ctx, query); err != nil {
		s.errorf("Error: %v", err)
	}
	_, _ = fmt.Fprintln(s.out)
	return false
}

func (s *shell) run(ctx context.Context, query string) error {
	resp, err := s.ds.Execute(ctx, datasource.Request{
		SQL:       query,
		Warehouse: s.warehouse(),
		Options:   datasource.QueryOptions{MaxRows: s.opts.MaxRows},
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Error.Message)
	}
	return renderResponse(s.out, resp, s.opts.Format)
}

func (s *shell) dotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printShellHelp(s.out)

	case ".warehouses":
		s.listWarehouses()

	case ".use":
		if len(parts) != 2 {
			s.errorf("Usage: .use <warehouse>")
			break
		}
		s.use(parts[1])

	case ".tables":
		s.listTables(ctx)

	default:
		s.errorf("Unknown command: %s (type .help for commands)", parts[0])
	}
	return false
}

func (s *shell) use(name string) {
	if _, ok := s.ds.DataSourceConfig(name); !ok {
		s.errorf("Unknown warehouse: %s (type .warehouses to list)", name)
		return
	}
	s.mu.Lock()
	s.current = name
	s.mu.Unlock()
	_, _ = fmt.Fprintf(s.out, "Using %s\n", name)
}

func (s *shell) listWarehouses() {
	current := s.warehouse()
	for _, info := range warehouseInfos(s.ds) {
		mark := " "
		if info.Name == current || (current == "" && info.Default) {
			mark = "*"
		}
		_, _ = fmt.Fprintf(s.out, "%s %s (%s)\n", mark, info.Name, info.Type)
	}
}

func (s *shell) listTables(ctx context.Context) {
	tables, err := s.ds.GetTables(ctx, s.warehouse(), "", "")
	if err != nil {
		s.errorf("Error: %v", err)
		return
	}
	if len(tables) == 0 {
		_, _ = fmt.Fprintln(s.out, "(no tables)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(s.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Schema", "Table", "Type", "Rows"})
	for _, tbl := range tables {
		t.AppendRow(table.Row{tbl.Schema, tbl.Name, tbl.Type, tbl.RowCount})
	}
	t.Render()
}

// reload applies a changed configuration file to the running session.
func (s *shell) reload(ctx context.Context, cfg *config.Config) {
	sources, err := cfg.DataSources()
	if err != nil {
		s.errorf("Config reload failed: %v", err)
		return
	}
	changes, err := config.Reconcile(ctx, s.ds, sources, cfg.Default)
	if err != nil {
		s.errorf("Config reload: %v", err)
	}

	s.mu.Lock()
	if _, ok := s.ds.DataSourceConfig(s.current); !ok {
		s.current = ""
	}
	s.mu.Unlock()

	if !changes.Empty() {
		_, _ = fmt.Fprintf(s.errOut, "Config reloaded: %s\n", describeChanges(changes))
	}
}

func describeChanges(c config.Changes) string {
	var parts []string
	if len(c.Added) > 0 {
		parts = append(parts, "added "+strings.Join(c.Added, ", "))
	}
	if len(c.Updated) > 0 {
		parts = append(parts, "updated "+strings.Join(c.Updated, ", "))
	}
	if len(c.Removed) > 0 {
		parts = append(parts, "removed "+strings.Join(c.Removed, ", "))
	}
	return strings.Join(parts, "; ")
}

func (s *shell) errorf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.errOut, format+"\n", a...)
}

func printShellHelp(w io.Writer) {
	help := `
Commands:
  .help              Show this help message
  .warehouses        List configured warehouses (* = active)
  .use <warehouse>   Switch the active warehouse
  .tables            List tables of the active warehouse
  .quit / .exit      Exit the shell

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Edits to the config file are applied automatically
`
	_, _ = fmt.Fprintln(w, help)
}
