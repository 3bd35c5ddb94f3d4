package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order when parsing date and timestamp cells.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// table is a raw CSV file with a header index.
type table struct {
	name  string
	path  string
	index map[string]int
	rows  [][]string
	cells int
	empty int
}

// readTable reads a CSV file with a header row.
func readTable(name, path string) (*table, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Table: name, Path: path, Err: ErrDataNotFound}
		}
		return nil, &LoadError{Table: name, Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &LoadError{Table: name, Path: path, Err: ErrDataEmpty}
	}
	if err != nil {
		return nil, &LoadError{Table: name, Path: path, Err: fmt.Errorf("%w: %w", ErrDataInvalid, err)}
	}

	t := &table{name: name, path: path, index: make(map[string]int, len(header))}
	for i, h := range header {
		t.index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Table: name, Path: path, Row: len(t.rows) + 1, Err: fmt.Errorf("%w: %w", ErrDataInvalid, err)}
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		for i := range header {
			t.cells++
			if i >= len(rec) || strings.TrimSpace(rec[i]) == "" {
				t.empty++
			}
		}
		t.rows = append(t.rows, rec)
	}

	if len(t.rows) == 0 {
		return nil, &LoadError{Table: name, Path: path, Err: ErrDataEmpty}
	}
	return t, nil
}

// column returns the index of the first matching header, or -1.
func (t *table) column(names ...string) int {
	for _, n := range names {
		if i, ok := t.index[n]; ok {
			return i
		}
	}
	return -1
}

// require is column that fails when no alias is present.
func (t *table) require(names ...string) (int, error) {
	if i := t.column(names...); i >= 0 {
		return i, nil
	}
	return -1, &LoadError{
		Table:  t.name,
		Path:   t.path,
		Column: names[0],
		Err:    fmt.Errorf("%w: missing required column", ErrDataInvalid),
	}
}

func (t *table) cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (t *table) invalid(row int, column string, err error) error {
	return &LoadError{Table: t.name, Path: t.path, Row: row, Column: column, Err: fmt.Errorf("%w: %w", ErrDataInvalid, err)}
}

// parseTime parses a date or timestamp cell.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// parseNumber parses a numeric cell; empty reads as zero.
func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
