// Package sqlserver provides the Microsoft SQL Server warehouse adapter.
//
// This file registers the SQL Server adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/warehouse/pkg/adapters/sqlserver"
package sqlserver

import (
	"log/slog"

	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

func init() {
	adapter.Register(core.TypeSQLServer, func(l *slog.Logger) core.Adapter { return New(l) })
}
