package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	sharedcfg "github.com/leapstack-labs/payinsight/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name     string
		setupDir func(t *testing.T, dir string)
		args     []string
		wantErr  bool
		wantEnv  string
	}{
		{
			name:    "init empty directory",
			wantEnv: sharedcfg.EnvDevelopment,
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, sharedcfg.ConfigFileName), []byte("existing"), 0600)
			},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, sharedcfg.ConfigFileName), []byte("existing"), 0600)
			},
			args:    []string{"--force"},
			wantEnv: sharedcfg.EnvDevelopment,
		},
		{
			name:    "init with environment",
			args:    []string{"--environment", sharedcfg.EnvProduction},
			wantEnv: sharedcfg.EnvProduction,
		},
		{
			name:    "init with unknown environment",
			args:    []string{"--environment", "staging"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.setupDir != nil {
				tt.setupDir(t, dir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(append([]string{dir}, tt.args...))

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			data, err := os.ReadFile(filepath.Join(dir, sharedcfg.ConfigFileName))
			require.NoError(t, err)

			var written sharedcfg.Config
			require.NoError(t, yaml.Unmarshal(data, &written))
			assert.Equal(t, tt.wantEnv, written.Environment)
			assert.DirExists(t, filepath.Join(dir, "data"))
			assert.Contains(t, buf.String(), "Next steps")
		})
	}
}
