package commands

import (
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/payinsight/internal/cli/output"
	"github.com/leapstack-labs/payinsight/internal/export"
	"github.com/leapstack-labs/payinsight/internal/textfmt"
	"github.com/leapstack-labs/payinsight/pkg/adapter"
	"github.com/spf13/cobra"
)

// ExportOptions holds options for the export command.
type ExportOptions struct {
	Dir       string
	Format    string
	Gzip      bool
	Metadata  bool
	Warehouse string
}

// ExportOutput is the JSON shape of the export command.
type ExportOutput struct {
	Manifest  *export.Manifest     `json:"manifest"`
	Warehouse []export.LoadedTable `json:"warehouse,omitempty"`
}

// duckDBFile is the warehouse file created in the export directory when
// --warehouse duckdb is given without a configured warehouse.
const duckDBFile = "payinsight.duckdb"

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export processed tables for BI tools",
		Long: `Write user_summary, transaction_summary, feature_metrics, funnel_data and
user_segments as CSV, JSON or a single XLSX workbook.

With --warehouse the same tables, plus the raw inputs, are loaded into a
DuckDB or PostgreSQL warehouse.`,
		Example: `  # CSV files in ./output
  payinsight export

  # Gzipped CSV in a custom directory
  payinsight export --dir exports --gzip

  # Excel workbook and a local DuckDB warehouse
  payinsight export --format xlsx --warehouse duckdb`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "Output directory (default from config)")
	cmd.Flags().StringVar(&opts.Format, "format", "", "File format: csv, json or xlsx (default from config)")
	cmd.Flags().BoolVar(&opts.Gzip, "gzip", false, "Compress csv and json files")
	cmd.Flags().BoolVar(&opts.Metadata, "metadata", false, "Write "+export.ManifestFile)
	cmd.Flags().StringVar(&opts.Warehouse, "warehouse", "", "Also load into a warehouse (duckdb or postgres)")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"csv", "json", "xlsx"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("warehouse", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return adapter.ListAdapters(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	ctx := cmd.Context()

	xopts := export.Options{
		Dir:             cfg.Export.Dir,
		Gzip:            cfg.Export.Gzip,
		IncludeMetadata: cfg.Export.IncludeMetadata,
		Logger:          cmdCtx.Logger,
	}
	format := cfg.Export.Format
	flags := cmd.Flags()
	if flags.Changed("dir") {
		xopts.Dir = opts.Dir
	}
	if flags.Changed("format") {
		format = opts.Format
	}
	if flags.Changed("gzip") {
		xopts.Gzip = opts.Gzip
	}
	if flags.Changed("metadata") {
		xopts.IncludeMetadata = opts.Metadata
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	xopts.Format = f

	var wcfg *adapter.Config
	if opts.Warehouse != "" {
		wcfg, err = warehouseConfig(cfg.Warehouse, opts.Warehouse, xopts.Dir)
		if err != nil {
			return err
		}
	}

	res, err := cmdCtx.Run(ctx)
	if err != nil {
		return err
	}

	manifest, err := export.Write(ctx, res, xopts)
	if err != nil {
		return err
	}

	out := ExportOutput{Manifest: manifest}
	if wcfg != nil {
		out.Warehouse, err = export.Warehouse(ctx, res, cfg.Data, wcfg, cmdCtx.Logger)
		if err != nil {
			return err
		}
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	renderExport(r, out, xopts.Dir, wcfg)
	return nil
}

// warehouseConfig selects the warehouse for --warehouse. A configured
// warehouse of another type is not reused; DuckDB falls back to a file in
// the export directory.
func warehouseConfig(configured *adapter.Config, kind, dir string) (*adapter.Config, error) {
	if !adapter.IsRegistered(kind) {
		return nil, &adapter.UnknownAdapterError{Type: kind, Available: adapter.ListAdapters()}
	}
	if configured != nil && configured.Type == kind {
		c := *configured
		return &c, nil
	}
	if kind == "duckdb" {
		return &adapter.Config{Type: kind, Path: filepath.Join(dir, duckDBFile)}, nil
	}
	return nil, fmt.Errorf("warehouse %q is not configured\nHint: add a warehouse section with type: %s to payinsight.yaml", kind, kind)
}

func renderExport(r *output.Renderer, out ExportOutput, dir string, wcfg *adapter.Config) {
	section(r, 1, "Export")
	r.KeyValue("Directory", dir)
	r.KeyValue("Format", string(out.Manifest.Format))
	rows := make([]table.Row, len(out.Manifest.Files))
	for i, f := range out.Manifest.Files {
		rows[i] = table.Row{f.Table, f.Path, textfmt.Int(f.Rows)}
	}
	r.Println("")
	renderTable(r, table.Row{"Table", "File", "Rows"}, rows)

	if wcfg != nil {
		section(r, 2, "Warehouse ("+wcfg.Type+")")
		rows = make([]table.Row, len(out.Warehouse))
		for i, t := range out.Warehouse {
			rows[i] = table.Row{t.Table, textfmt.Int(int(t.Rows))}
		}
		renderTable(r, table.Row{"Table", "Rows"}, rows)
	}
	r.Success(fmt.Sprintf("Exported %d tables", len(out.Manifest.Files)))
}
