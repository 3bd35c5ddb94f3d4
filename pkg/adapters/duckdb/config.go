package duckdb

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific warehouse settings, decoded from
// adapter.Config.Params.
type Params struct {
	// Extensions are installed and loaded on connect (e.g. "json", "httpfs").
	Extensions []string `mapstructure:"extensions"`

	// Settings are applied with SET on connect (e.g. memory_limit, threads).
	Settings map[string]string `mapstructure:"settings"`

	// Schema, when set, is created on connect and used for unqualified tables.
	Schema string `mapstructure:"schema"`
}

// ParseParams decodes raw params. Nil or empty input yields zero Params.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return p, nil
}
