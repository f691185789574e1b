package datasource

import (
	"context"

	"github.com/leapstack-labs/warehouse/pkg/core"
)

// namedIntrospector stamps the warehouse name on full snapshots.
type namedIntrospector struct {
	core.Introspector
	name string
}

func (n *namedIntrospector) GetFullIntrospection(ctx context.Context, opts *core.IntrospectOptions) (*core.IntrospectionResult, error) {
	result, err := n.Introspector.GetFullIntrospection(ctx, opts)
	if err != nil {
		return nil, err
	}
	result.DataSourceName = n.name
	return result, nil
}

// Introspect returns an introspector for the named warehouse, or for the
// default one when name is empty.
func (d *DataSource) Introspect(ctx context.Context, name string) (core.Introspector, error) {
	name, err := d.resolveName(name)
	if err != nil {
		return nil, err
	}
	a, err := d.getAdapter(ctx, name)
	if err != nil {
		return nil, err
	}
	in, err := a.Introspect()
	if err != nil {
		return nil, err
	}
	return &namedIntrospector{Introspector: in, name: name}, nil
}

// GetDatabases lists databases of a warehouse.
func (d *DataSource) GetDatabases(ctx context.Context, name string) ([]core.Database, error) {
	in, err := d.Introspect(ctx, name)
	if err != nil {
		return nil, err
	}
	return in.GetDatabases(ctx)
}

// GetSchemas lists schemas of a warehouse, optionally of one database.
func (d *DataSource) GetSchemas(ctx context.Context, name, database string) ([]core.Schema, error) {
	in, err := d.Introspect(ctx, name)
	if err != nil {
		return nil, err
	}
	return in.GetSchemas(ctx, database)
}

// GetTables lists tables of a warehouse.
func (d *DataSource) GetTables(ctx context.Context, name, database, schema string) ([]core.Table, error) {
	in, err := d.Introspect(ctx, name)
	if err != nil {
		return nil, err
	}
	return in.GetTables(ctx, database, schema)
}

// GetColumns lists columns of a warehouse.
func (d *DataSource) GetColumns(ctx context.Context, name, database, schema, table string) ([]core.Column, error) {
	in, err := d.Introspect(ctx, name)
	if err != nil {
		return nil, err
	}
	return in.GetColumns(ctx, database, schema, table)
}

// GetViews lists views of a warehouse.
func (d *DataSource) GetViews(ctx context.Context, name, database, schema string) ([]core.View, error) {
	in, err := d.Introspect(ctx, name)
	if err != nil {
		return nil, err
	}
	return in.GetViews(ctx, database, schema)
}

// GetTableStatistics reports table-level statistics.
func (d *DataSource) GetTableStatistics(ctx context.Context, name, database, schema, table string) (*core.TableStatistics, error) {
	in, err := d.Introspect(ctx, name)
	if err != nil {
		return nil, err
	}
	return in.GetTableStatistics(ctx, database, schema, table)
}

// GetFullIntrospection returns a filtered metadata snapshot of a warehouse.
func (d *DataSource) GetFullIntrospection(ctx context.Context, name string, opts *core.IntrospectOptions) (*core.IntrospectionResult, error) {
	in, err := d.Introspect(ctx, name)
	if err != nil {
		return nil, err
	}
	return in.GetFullIntrospection(ctx, opts)
}
