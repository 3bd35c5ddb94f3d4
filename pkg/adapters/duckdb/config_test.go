package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr bool
	}{
		{
			name:  "nil params",
			input: nil,
			want:  &Params{},
		},
		{
			name: "extensions",
			input: map[string]any{
				"extensions": []any{"json"},
			},
			want: &Params{Extensions: []string{"json"}},
		},
		{
			name: "settings are weakly typed",
			input: map[string]any{
				"settings": map[string]any{"memory_limit": "1GB", "threads": 2},
				"schema":   "analytics",
			},
			want: &Params{
				Settings: map[string]string{"memory_limit": "1GB", "threads": "2"},
				Schema:   "analytics",
			},
		},
		{
			name:    "unknown key",
			input:   map[string]any{"secrets": []any{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
