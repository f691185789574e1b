// Package mysql provides the MySQL warehouse adapter.
//
// This file registers the MySQL adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/warehouse/pkg/adapters/mysql"
package mysql

import (
	"log/slog"

	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

func init() {
	adapter.Register(core.TypeMySQL, func(l *slog.Logger) core.Adapter { return New(l) })
}
