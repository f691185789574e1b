package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/warehouse/internal/cli/commands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `default: primary
warehouses:
  - name: primary
    credentials:
      type: postgres
      host: localhost
      default_database: app
  - name: lake
    credentials:
      type: bigquery
      project_id: acme-analytics
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warehouses.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(&bytes.Buffer{})
	root.SetArgs(args)
	err := run(context.Background(), root)
	return out.String(), errOut.String(), err
}

func TestRootCmd_Commands(t *testing.T) {
	root := NewRootCmd()
	assert.Equal(t, "warehouse", root.Use)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"version", "query", "shell", "list", "test", "introspect", "completion"}, names)

	for _, flag := range []string{"config", "verbose", "output"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRootCmd_List(t *testing.T) {
	path := writeTestConfig(t, testConfig)

	out, errOut, err := execute(t, "list", "--config", path, "-o", "json", "-v")
	require.NoError(t, err)

	var got []commands.WarehouseInfo
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []commands.WarehouseInfo{
		{Name: "lake", Type: "bigquery"},
		{Name: "primary", Type: "postgres", Default: true},
	}, got)
	assert.Contains(t, errOut, "Using config file: "+path)
}

func TestRootCmd_OutputFromEnv(t *testing.T) {
	path := writeTestConfig(t, testConfig)
	t.Setenv("WAREHOUSE_OUTPUT", "markdown")

	out, _, err := execute(t, "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "# Warehouses (2)")
}

func TestRootCmd_NoConfig(t *testing.T) {
	out, _, err := execute(t, "list", "-o", "markdown")
	require.NoError(t, err)
	assert.Equal(t, "# Warehouses (0)\n\n", out)
}

func TestRootCmd_ConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, _, err := execute(t, "list", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("undefined default", func(t *testing.T) {
		path := writeTestConfig(t, "default: ghost\nwarehouses:\n  - name: a\n    credentials:\n      type: postgres\n")
		_, _, err := execute(t, "list", "--config", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "default warehouse 'ghost' is not defined")
	})

	t.Run("bad credentials", func(t *testing.T) {
		path := writeTestConfig(t, "warehouses:\n  - name: a\n    credentials:\n      type: postgres\n      hots: typo\n")
		_, _, err := execute(t, "list", "--config", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "warehouse 'a'")
	})
}

func TestRootCmd_QueryWithoutRegisteredEngine(t *testing.T) {
	path := writeTestConfig(t, testConfig)

	_, _, err := execute(t, "query", "--config", path, "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query failed on 'primary'")
	assert.Contains(t, err.Error(), "unsupported data source type")
}

func TestRootCmd_Version(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "warehouse v"+Version)
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "warehouse")

	_, _, err = execute(t, "completion", "tcsh")
	assert.Error(t, err)
}
