package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/payinsight/internal/loader"
	"github.com/leapstack-labs/payinsight/internal/pipeline"
	"github.com/leapstack-labs/payinsight/pkg/adapter"
)

// Raw input tables are loaded under these names.
const rawPrefix = "raw_"

// LoadedTable reports one table written to the warehouse.
type LoadedTable struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// Warehouse loads the processed tables and the raw inputs into the
// configured warehouse. Processed tables are staged as CSV in a temporary
// directory first.
func Warehouse(ctx context.Context, res *pipeline.Result, raw loader.Paths, cfg *adapter.Config, logger *slog.Logger) ([]LoadedTable, error) {
	if cfg == nil {
		return nil, fmt.Errorf("warehouse not configured\nHint: add a warehouse section to payinsight.yaml")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	a, err := adapter.NewAdapter(*cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, *cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s warehouse: %w", cfg.Type, err)
	}
	defer func() { _ = a.Close() }()

	staging, err := os.MkdirTemp("", "payinsight-export-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	files := make([][2]string, 0, 8)
	for _, t := range Tables(res) {
		path := filepath.Join(staging, t.Name+".csv")
		if err := writeFile(path, false, func(w io.Writer) error { return writeCSV(w, t) }); err != nil {
			return nil, fmt.Errorf("failed to stage %s: %w", t.Name, err)
		}
		files = append(files, [2]string{t.Name, path})
	}
	for _, name := range []string{loader.TableUsers, loader.TableTransactions, loader.TableActivity} {
		if path := raw.All()[name]; path != "" {
			files = append(files, [2]string{rawPrefix + name, path})
		}
	}

	loaded := make([]LoadedTable, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		table := adapter.QuoteIdent(a.DefaultSchema()) + "." + adapter.QuoteIdent(f[0])
		if err := a.LoadCSV(ctx, f[0], f[1]); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f[0], err)
		}
		meta, err := a.GetTableMetadata(ctx, f[0])
		if err != nil {
			return nil, fmt.Errorf("failed to inspect %s: %w", table, err)
		}
		logger.Info("loaded warehouse table", slog.String("table", table), slog.Int64("rows", meta.RowCount))
		loaded = append(loaded, LoadedTable{Table: f[0], Rows: meta.RowCount})
	}
	return loaded, nil
}
