// Package all registers every supported warehouse adapter with the default
// adapter registry.
//
//	import _ "github.com/leapstack-labs/warehouse/pkg/adapters/all"
package all

import (
	// Engine packages register themselves in init().
	_ "github.com/leapstack-labs/warehouse/pkg/adapters/bigquery"
	_ "github.com/leapstack-labs/warehouse/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/warehouse/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/warehouse/pkg/adapters/redshift"
	_ "github.com/leapstack-labs/warehouse/pkg/adapters/snowflake"
	_ "github.com/leapstack-labs/warehouse/pkg/adapters/sqlserver"
)
