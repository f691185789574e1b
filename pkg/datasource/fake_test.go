package datasource

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

// world scripts fake adapter behavior by postgres host name.
type world struct {
	mu        sync.Mutex
	initErr   map[string]error
	queryErr  map[string]error
	result    map[string]*core.QueryResult
	connects  atomic.Int32
	closes    atomic.Int32
	connDelay time.Duration
}

func newWorld() *world {
	return &world{
		initErr:  map[string]error{},
		queryErr: map[string]error{},
		result:   map[string]*core.QueryResult{},
	}
}

func (w *world) registry() *adapter.Registry {
	r := adapter.NewRegistry()
	r.Register(core.TypePostgres, func(*slog.Logger) core.Adapter { return &fakeAdapter{world: w} })
	return r
}

type fakeAdapter struct {
	world *world
	host  string

	lastMaxRows int
	lastTimeout time.Duration
}

func (f *fakeAdapter) Initialize(_ context.Context, creds core.Credentials) error {
	pg, err := adapter.CredentialsAs[core.PostgresCredentials](creds)
	if err != nil {
		return err
	}
	f.host = pg.Host
	f.world.connects.Add(1)
	time.Sleep(f.world.connDelay)

	f.world.mu.Lock()
	defer f.world.mu.Unlock()
	if err := f.world.initErr[pg.Host]; err != nil {
		return &core.ClientInitError{Engine: core.TypePostgres, Err: err}
	}
	return nil
}

func (f *fakeAdapter) Query(_ context.Context, sql string, _ []any, maxRows int, timeout time.Duration) (*core.QueryResult, error) {
	f.world.mu.Lock()
	defer f.world.mu.Unlock()
	f.lastMaxRows, f.lastTimeout = maxRows, timeout
	if err := f.world.queryErr[f.host]; err != nil {
		return nil, &core.QueryError{Engine: core.TypePostgres, Err: err}
	}
	if r, ok := f.world.result[f.host]; ok {
		return r, nil
	}
	return &core.QueryResult{
		Rows:     []map[string]any{{"host": f.host, "sql": sql}},
		RowCount: 1,
		Fields:   []core.FieldMetadata{{Name: "host", Type: "text", Nullable: true}, {Name: "sql", Type: "text", Nullable: true}},
	}, nil
}

func (f *fakeAdapter) TestConnection(context.Context) bool { return f.host != "down" }

func (f *fakeAdapter) Introspect() (core.Introspector, error) {
	return &fakeIntrospector{host: f.host}, nil
}

func (f *fakeAdapter) Close() error {
	f.world.closes.Add(1)
	return errors.New("close errors are swallowed")
}

func (f *fakeAdapter) DataSourceType() core.DataSourceType { return core.TypePostgres }

type fakeIntrospector struct {
	host string
}

func (f *fakeIntrospector) GetDatabases(context.Context) ([]core.Database, error) {
	return []core.Database{{Name: f.host}}, nil
}

func (f *fakeIntrospector) GetSchemas(_ context.Context, database string) ([]core.Schema, error) {
	return []core.Schema{{Name: "public", Database: database}}, nil
}

func (f *fakeIntrospector) GetTables(_ context.Context, database, schema string) ([]core.Table, error) {
	return []core.Table{{Name: "t", Schema: schema, Database: database}}, nil
}

func (f *fakeIntrospector) GetColumns(_ context.Context, database, schema, table string) ([]core.Column, error) {
	return []core.Column{{Name: "id", Table: table, Schema: schema, Database: database}}, nil
}

func (f *fakeIntrospector) GetViews(context.Context, string, string) ([]core.View, error) {
	return []core.View{}, nil
}

func (f *fakeIntrospector) GetTableStatistics(_ context.Context, database, schema, table string) (*core.TableStatistics, error) {
	return &core.TableStatistics{Table: table, Schema: schema, Database: database, RowCount: 7}, nil
}

func (f *fakeIntrospector) GetColumnStatistics(context.Context, string, string, string) ([]core.ColumnStatistics, error) {
	return []core.ColumnStatistics{}, nil
}

func (f *fakeIntrospector) GetFullIntrospection(context.Context, *core.IntrospectOptions) (*core.IntrospectionResult, error) {
	return &core.IntrospectionResult{DataSourceType: core.TypePostgres, Databases: []core.Database{{Name: f.host}}}, nil
}

func (f *fakeIntrospector) DataSourceType() core.DataSourceType { return core.TypePostgres }

func pg(name, host string) core.DataSourceConfig {
	return core.DataSourceConfig{Name: name, Credentials: core.PostgresCredentials{Host: host}}
}
