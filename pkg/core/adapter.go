package core

import (
	"context"
	"time"
)

// Adapter defines the interface that all warehouse adapters must implement.
// An adapter owns one live connection (or client) to one warehouse.
type Adapter interface {
	// Initialize connects using creds. Fails with ErrInvalidCredentialsType
	// when creds belong to another engine.
	Initialize(ctx context.Context, creds Credentials) error

	// Query executes sql with positional params. maxRows <= 0 means no limit,
	// timeout <= 0 means the engine default.
	Query(ctx context.Context, sql string, params []any, maxRows int, timeout time.Duration) (*QueryResult, error)

	// TestConnection reports whether a trivial query succeeds. Never fails.
	TestConnection(ctx context.Context) bool

	// Introspect returns an Introspector bound to the current connection.
	Introspect() (Introspector, error)

	// Close releases the connection. Safe to call more than once.
	Close() error

	// DataSourceType returns the engine tag.
	DataSourceType() DataSourceType
}

// Introspector explores warehouse metadata. Empty string arguments mean
// "no restriction" for the optional scoping parameters.
type Introspector interface {
	GetDatabases(ctx context.Context) ([]Database, error)
	GetSchemas(ctx context.Context, database string) ([]Schema, error)
	GetTables(ctx context.Context, database, schema string) ([]Table, error)
	GetColumns(ctx context.Context, database, schema, table string) ([]Column, error)
	GetViews(ctx context.Context, database, schema string) ([]View, error)
	GetTableStatistics(ctx context.Context, database, schema, table string) (*TableStatistics, error)
	GetColumnStatistics(ctx context.Context, database, schema, table string) ([]ColumnStatistics, error)
	GetFullIntrospection(ctx context.Context, opts *IntrospectOptions) (*IntrospectionResult, error)
	DataSourceType() DataSourceType
}

// IndexLister is implemented by introspectors for engines with index metadata.
type IndexLister interface {
	GetIndexes(ctx context.Context, database, schema string) ([]Index, error)
}

// ForeignKeyLister is implemented by introspectors for engines with foreign key metadata.
type ForeignKeyLister interface {
	GetForeignKeys(ctx context.Context, database, schema string) ([]ForeignKey, error)
}
