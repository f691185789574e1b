// Package redshift provides the Amazon Redshift warehouse adapter.
//
// This file registers the Redshift adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/warehouse/pkg/adapters/redshift"
package redshift

import (
	"log/slog"

	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

func init() {
	adapter.Register(core.TypeRedshift, func(l *slog.Logger) core.Adapter { return New(l) })
}
