package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/leapstack-labs/warehouse/internal/cli/output"
	"github.com/leapstack-labs/warehouse/internal/config"
	"github.com/leapstack-labs/warehouse/pkg/datasource"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg        *config.Config
	Logger     *slog.Logger
	Renderer   *output.Renderer
	DataSource *datasource.DataSource
}

type commandContextKey struct{}

// errNoCommandContext is returned when a command runs without the root
// command's setup.
var errNoCommandContext = errors.New("command context not initialized")

// WithCommandContext stores cc in ctx.
func WithCommandContext(ctx context.Context, cc *CommandContext) context.Context {
	return context.WithValue(ctx, commandContextKey{}, cc)
}

// GetCommandContext returns the CommandContext set up by the root command.
func GetCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errNoCommandContext
	}
	cc, ok := ctx.Value(commandContextKey{}).(*CommandContext)
	if !ok || cc == nil {
		return nil, errNoCommandContext
	}
	return cc, nil
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if cc, ok := ctx.Value(commandContextKey{}).(*CommandContext); ok && cc.Logger != nil {
		return cc.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// resolveFormat returns the per-command --format if set, otherwise the
// renderer's effective mode.
func resolveFormat(flag string, r *output.Renderer) string {
	if flag != "" {
		return flag
	}
	return string(r.EffectiveMode())
}
