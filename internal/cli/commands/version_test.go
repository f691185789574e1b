package commands

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/leapstack-labs/warehouse/internal/cli/output"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("1.2.3", "abc1234", "2026-01-02")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "warehouse v1.2.3\ncommit abc1234, built 2026-01-02\n", out.String())
}

func TestGetCommandContext(t *testing.T) {
	cmd := &cobra.Command{}
	_, err := GetCommandContext(cmd)
	assert.ErrorIs(t, err, errNoCommandContext)

	cc := &CommandContext{Logger: slog.New(slog.DiscardHandler)}
	cmd.SetContext(WithCommandContext(context.Background(), cc))
	got, err := GetCommandContext(cmd)
	require.NoError(t, err)
	assert.Same(t, cc, got)
	assert.Same(t, cc.Logger, GetLogger(cmd.Context()))

	assert.NotNil(t, GetLogger(context.Background()))
}

func TestResolveFormat(t *testing.T) {
	var out bytes.Buffer
	r := output.NewRendererWithTTY(&out, &out, true, output.ModeAuto)

	assert.Equal(t, "csv", resolveFormat("csv", r))
	assert.Equal(t, "text", resolveFormat("", r))
	assert.Equal(t, "markdown", resolveFormat("", output.NewRendererWithTTY(&out, &out, false, output.ModeAuto)))
}
