// Package cli provides the command-line interface for warehouse.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/warehouse/internal/cli/commands"
	"github.com/leapstack-labs/warehouse/internal/cli/output"
	"github.com/leapstack-labs/warehouse/internal/config"
	"github.com/leapstack-labs/warehouse/pkg/datasource"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "warehouse",
		Short: "warehouse - one query interface for many SQL warehouses",
		Long: `warehouse runs SQL and metadata introspection against named warehouses
(PostgreSQL, MySQL, SQL Server, Redshift, Snowflake and BigQuery) through a
single interface.

Warehouses are defined in warehouses.yaml. Connections are opened on first
use and results are normalized across engines.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "help", "completion", "version":
				return nil
			}

			cc, err := newCommandContext(cmd, cfgFile)
			if err != nil {
				// Completion offers no candidates on a broken config.
				if isCompletionRequest(cmd) {
					return nil
				}
				return err
			}
			cmd.SetContext(commands.WithCommandContext(cmd.Context(), cc))

			if cc.Cfg.Verbose && cc.Cfg.Path != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", cc.Cfg.Path)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./warehouses.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|markdown|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit, BuildDate))
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewShellCommand())
	rootCmd.AddCommand(commands.NewListCommand())
	rootCmd.AddCommand(commands.NewTestCommand())
	rootCmd.AddCommand(commands.NewIntrospectCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// newCommandContext loads configuration and builds the shared dependencies
// of a command run. No warehouse connections are opened.
func newCommandContext(cmd *cobra.Command, cfgFile string) (*commands.CommandContext, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	sources, err := cfg.DataSources()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &commands.CommandContext{
		Cfg:    cfg,
		Logger: logger,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(),
			output.Mode(cfg.Output)),
		DataSource: datasource.New(datasource.Options{
			DataSources:       sources,
			DefaultDataSource: cfg.Default,
			Logger:            logger,
		}),
	}, nil
}

func isCompletionRequest(cmd *cobra.Command) bool {
	return cmd.Name() == cobra.ShellCompRequestCmd || cmd.Name() == cobra.ShellCompNoDescRequestCmd
}

// Execute runs the root command and closes warehouse connections on exit.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, NewRootCmd())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// run executes rootCmd and closes the DataSource of whichever command ran.
func run(ctx context.Context, rootCmd *cobra.Command) error {
	cmd, err := rootCmd.ExecuteContextC(ctx)
	if cmd != nil {
		if cc, ccErr := commands.GetCommandContext(cmd); ccErr == nil {
			_ = cc.DataSource.Close(context.WithoutCancel(ctx))
		}
	}
	return err
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	generators := map[string]func(*cobra.Command, io.Writer) error{
		"bash":       func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
		"zsh":        func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
		"fish":       func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
		"powershell": func(root *cobra.Command, w io.Writer) error { return root.GenPowerShellCompletionWithDesc(w) },
	}

	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for warehouse. Warehouse names complete
from the active config file.

  $ source <(warehouse completion bash)
  $ warehouse completion zsh > "${fpath[1]}/_warehouse"
  $ warehouse completion fish > ~/.config/fish/completions/warehouse.fish
  PS> warehouse completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generators[args[0]](cmd.Root(), cmd.OutOrStdout())
		},
	}
}
