// Package postgres provides the PostgreSQL warehouse adapter.
//
// This file registers the PostgreSQL adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/warehouse/pkg/adapters/postgres"
package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

func init() {
	adapter.Register(core.TypePostgres, func(l *slog.Logger) core.Adapter { return New(l) })
}
