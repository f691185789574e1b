// Package adapter provides the shared plumbing behind every warehouse adapter.
//
// This package contains the adapter factory (Registry), the database/sql base
// that the SQL engines embed (BaseSQLAdapter), row reading and limiting,
// placeholder translation, credential decoding and the engine-independent
// part of introspection (FullIntrospection, sample truncation).
//
// The Adapter and Introspector contracts themselves live in pkg/core.
// Concrete engines are in pkg/adapters/ subdirectories and register
// themselves with Default from their init() functions.
package adapter

import (
	"context"
	"database/sql"
)

// OpenFunc opens a database handle. It has the signature of sql.Open so
// engines can swap it for a sqlmock-backed handle in tests.
type OpenFunc func(driverName, dsn string) (*sql.DB, error)

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
