package loader

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel load failures. Every error returned by Load wraps exactly one.
var (
	ErrDataNotFound = errors.New("data file not found")
	ErrDataEmpty    = errors.New("data file has no rows")
	ErrDataInvalid  = errors.New("invalid data")
)

// LoadError describes where a load failed.
type LoadError struct {
	Table  string
	Path   string
	Row    int // 1-based data row, 0 when not row specific
	Column string
	Err    error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", e.Table, e.Path)
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}
