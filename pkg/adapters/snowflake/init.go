// Package snowflake provides the Snowflake warehouse adapter.
//
// This file registers the Snowflake adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/warehouse/pkg/adapters/snowflake"
package snowflake

import (
	"log/slog"

	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

func init() {
	adapter.Register(core.TypeSnowflake, func(l *slog.Logger) core.Adapter { return New(l) })
}
