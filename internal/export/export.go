// Package export writes processed analysis tables to disk and loads them
// into a warehouse.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/leapstack-labs/payinsight/internal/pipeline"
	"github.com/xuri/excelize/v2"
)

// Format selects the file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	case "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv, json or xlsx)", s)
}

// ManifestFile is the metadata file written next to the exports.
const ManifestFile = "metadata.json"

// Options controls Write.
type Options struct {
	Dir    string
	Format Format
	// Gzip compresses CSV and JSON files. Ignored for xlsx.
	Gzip bool
	// IncludeMetadata writes ManifestFile.
	IncludeMetadata bool
	Logger          *slog.Logger
}

// Manifest describes one export.
type Manifest struct {
	GeneratedAt time.Time   `json:"generated_at"`
	AsOf        time.Time   `json:"as_of"`
	Format      Format      `json:"format"`
	Files       []FileEntry `json:"files"`
}

// FileEntry is one written file.
type FileEntry struct {
	Table string `json:"table"`
	Path  string `json:"path"`
	Rows  int    `json:"rows"`
}

// Write exports every table in Tables(res) to opts.Dir.
func Write(ctx context.Context, res *pipeline.Result, opts Options) (*Manifest, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Format == "" {
		opts.Format = FormatCSV
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	tables := Tables(res)
	m := &Manifest{GeneratedAt: time.Now().UTC(), AsOf: res.Analysis.AsOf, Format: opts.Format}

	switch opts.Format {
	case FormatXLSX:
		path := filepath.Join(opts.Dir, "payinsight.xlsx")
		if err := writeXLSX(path, tables); err != nil {
			return nil, err
		}
		for _, t := range tables {
			m.Files = append(m.Files, FileEntry{Table: t.Name, Path: path, Rows: len(t.Rows)})
		}
	case FormatCSV, FormatJSON:
		for _, t := range tables {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			name := t.Name + "." + string(opts.Format)
			if opts.Gzip {
				name += ".gz"
			}
			path := filepath.Join(opts.Dir, name)
			if err := writeFile(path, opts.Gzip, func(w io.Writer) error {
				if opts.Format == FormatCSV {
					return writeCSV(w, t)
				}
				return writeJSON(w, t)
			}); err != nil {
				return nil, fmt.Errorf("failed to export %s: %w", t.Name, err)
			}
			m.Files = append(m.Files, FileEntry{Table: t.Name, Path: path, Rows: len(t.Rows)})
		}
	default:
		return nil, fmt.Errorf("unknown export format %q", opts.Format)
	}

	for _, f := range m.Files {
		logger.Debug("exported table", slog.String("table", f.Table), slog.String("path", f.Path), slog.Int("rows", f.Rows))
	}

	if opts.IncludeMetadata {
		if err := writeFile(filepath.Join(opts.Dir, ManifestFile), false, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		}); err != nil {
			return nil, fmt.Errorf("failed to write manifest: %w", err)
		}
	}
	return m, nil
}

func writeFile(path string, compress bool, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !compress {
		return fn(f)
	}
	zw := gzip.NewWriter(f)
	if err := fn(zw); err != nil {
		return err
	}
	return zw.Close()
}

// writeCSV writes one table as headered CSV.
func writeCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	record := make([]string, len(t.Header))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeJSON writes one table as an array of objects keyed by header.
func writeJSON(w io.Writer, t Table) error {
	records := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Header))
		for i, h := range t.Header {
			rec[h] = row[i]
		}
		records = append(records, rec)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// writeXLSX writes one sheet per table.
func writeXLSX(path string, tables []Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.Name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(t.Name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", t.Name, err)
		}

		sw, err := f.NewStreamWriter(t.Name)
		if err != nil {
			return fmt.Errorf("failed to open sheet %s: %w", t.Name, err)
		}
		header := make([]any, len(t.Header))
		for j, h := range t.Header {
			header[j] = excelize.Cell{StyleID: bold, Value: h}
		}
		if err := sw.SetRow("A1", header); err != nil {
			return err
		}
		for r, row := range t.Rows {
			cells := make([]any, len(row))
			for j, v := range row {
				if ts, ok := v.(time.Time); ok && ts.IsZero() {
					v = nil
				}
				cells[j] = v
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := sw.SetRow(cell, cells); err != nil {
				return fmt.Errorf("failed to write %s row %d: %w", t.Name, r+1, err)
			}
		}
		if err := sw.Flush(); err != nil {
			return fmt.Errorf("failed to flush sheet %s: %w", t.Name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
