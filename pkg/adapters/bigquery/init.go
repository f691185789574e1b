// Package bigquery provides the Google BigQuery warehouse adapter.
//
// This file registers the BigQuery adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/warehouse/pkg/adapters/bigquery"
package bigquery

import (
	"log/slog"

	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

func init() {
	adapter.Register(core.TypeBigQuery, func(l *slog.Logger) core.Adapter { return New(l) })
}
