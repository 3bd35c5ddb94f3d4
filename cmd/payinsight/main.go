// Package main provides the PayInsight CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/payinsight/internal/cli"

	// Warehouse adapters register themselves on import.
	_ "github.com/leapstack-labs/payinsight/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/payinsight/pkg/adapters/postgres"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
