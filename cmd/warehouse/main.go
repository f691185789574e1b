// Command warehouse runs SQL and introspection against configured warehouses.
package main

import (
	"os"

	"github.com/leapstack-labs/warehouse/internal/cli"
	_ "github.com/leapstack-labs/warehouse/pkg/adapters/all"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
