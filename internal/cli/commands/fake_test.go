package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/warehouse/internal/cli/output"
	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
	"github.com/leapstack-labs/warehouse/pkg/datasource"
	"github.com/spf13/cobra"
)

// recorder captures what the fake adapters were asked to do.
type recorder struct {
	mu      sync.Mutex
	sql     string
	params  []any
	maxRows int
	timeout time.Duration
}

func (r *recorder) last() (string, []any, int, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sql, r.params, r.maxRows, r.timeout
}

// fakeAdapter serves a small "shop" catalog. Hosts named "down" fail
// connection tests, hosts named "unreachable" fail to connect, and SQL
// containing "missing_table" fails.
type fakeAdapter struct {
	rec  *recorder
	host string
}

func (f *fakeAdapter) Initialize(_ context.Context, creds core.Credentials) error {
	pg, err := adapter.CredentialsAs[core.PostgresCredentials](creds)
	if err != nil {
		return err
	}
	if pg.Host == "unreachable" {
		return &core.ClientInitError{Engine: core.TypePostgres, Err: errors.New("connection refused")}
	}
	f.host = pg.Host
	return nil
}

func (f *fakeAdapter) Query(_ context.Context, sql string, params []any, maxRows int, timeout time.Duration) (*core.QueryResult, error) {
	f.rec.mu.Lock()
	f.rec.sql, f.rec.params, f.rec.maxRows, f.rec.timeout = sql, params, maxRows, timeout
	f.rec.mu.Unlock()

	if strings.Contains(sql, "missing_table") {
		return nil, &core.QueryError{Engine: core.TypePostgres, Err: errors.New(`relation "missing_table" does not exist`)}
	}
	result := &core.QueryResult{
		Rows: []map[string]any{
			{"id": int64(1), "name": "Alice, Jr."},
			{"id": int64(2), "name": nil},
			{"id": int64(3), "name": "Carol"},
		},
		RowCount: 3,
		Fields: []core.FieldMetadata{
			{Name: "id", Type: "int8"},
			{Name: "name", Type: "text", Nullable: true},
		},
	}
	return adapter.LimitRows(result, maxRows), nil
}

func (f *fakeAdapter) TestConnection(context.Context) bool { return f.host != "down" }

func (f *fakeAdapter) Introspect() (core.Introspector, error) {
	return &fakeIntrospector{}, nil
}

func (f *fakeAdapter) Close() error { return nil }

func (f *fakeAdapter) DataSourceType() core.DataSourceType { return core.TypePostgres }

type fakeIntrospector struct{}

func (fakeIntrospector) GetDatabases(context.Context) ([]core.Database, error) {
	return []core.Database{{Name: "shop"}}, nil
}

func (fakeIntrospector) GetSchemas(context.Context, string) ([]core.Schema, error) {
	return []core.Schema{{Name: "public", Database: "shop"}}, nil
}

func (fakeIntrospector) GetTables(context.Context, string, string) ([]core.Table, error) {
	return []core.Table{
		{Name: "customers", Schema: "public", Database: "shop", Type: core.TableKindTable, RowCount: 2},
		{Name: "orders", Schema: "public", Database: "shop", Type: core.TableKindTable, RowCount: 5, Comment: "customer orders"},
	}, nil
}

func (fakeIntrospector) GetColumns(context.Context, string, string, string) ([]core.Column, error) {
	return []core.Column{
		{Name: "id", Table: "customers", Schema: "public", Database: "shop", DataType: "int8"},
		{Name: "id", Table: "orders", Schema: "public", Database: "shop", DataType: "int8"},
		{Name: "total", Table: "orders", Schema: "public", Database: "shop", DataType: "numeric", Nullable: true},
	}, nil
}

func (fakeIntrospector) GetViews(context.Context, string, string) ([]core.View, error) {
	return []core.View{{Name: "big_orders", Schema: "public", Database: "shop"}}, nil
}

func (fakeIntrospector) GetTableStatistics(_ context.Context, database, schema, table string) (*core.TableStatistics, error) {
	return &core.TableStatistics{Table: table, Schema: schema, Database: database}, nil
}

func (fakeIntrospector) GetColumnStatistics(context.Context, string, string, string) ([]core.ColumnStatistics, error) {
	return []core.ColumnStatistics{}, nil
}

func (f fakeIntrospector) GetFullIntrospection(ctx context.Context, opts *core.IntrospectOptions) (*core.IntrospectionResult, error) {
	return adapter.FullIntrospection(ctx, f, opts, nil)
}

func (fakeIntrospector) DataSourceType() core.DataSourceType { return core.TypePostgres }

func pgWarehouse(name, host string) core.DataSourceConfig {
	return core.DataSourceConfig{Name: name, Credentials: core.PostgresCredentials{Host: host}}
}

// harness wires commands to fake warehouses and captured output.
type harness struct {
	rec    *recorder
	ds     *datasource.DataSource
	cc     *CommandContext
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newHarness(t *testing.T, mode output.OutputMode, def string, warehouses ...core.DataSourceConfig) *harness {
	t.Helper()
	rec := &recorder{}
	registry := adapter.NewRegistry()
	registry.Register(core.TypePostgres, func(*slog.Logger) core.Adapter { return &fakeAdapter{rec: rec} })

	ds := datasource.New(datasource.Options{
		DataSources:       warehouses,
		DefaultDataSource: def,
		Registry:          registry,
	})
	t.Cleanup(func() { _ = ds.Close(context.Background()) })

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &harness{
		rec:    rec,
		ds:     ds,
		out:    out,
		errOut: errOut,
		cc: &CommandContext{
			Logger:     slog.New(slog.DiscardHandler),
			Renderer:   output.NewRendererWithTTY(out, errOut, false, mode),
			DataSource: ds,
		},
	}
}

// run executes cmd with args. Stdin is empty unless stdin is given.
func (h *harness) run(cmd *cobra.Command, stdin string, args ...string) error {
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(h.out)
	cmd.SetErr(h.errOut)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetContext(WithCommandContext(context.Background(), h.cc))
	return cmd.Execute()
}
