package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/payinsight/pkg/adapter"
)

// Import this package with a blank identifier to register the adapter.
func init() {
	adapter.Register("postgres", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
