package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Report.TopN)
	assert.Equal(t, FormatPprof, cfg.Export.Format)
	assert.False(t, cfg.Waterfall.HighResolution)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  pretty: false
waterfall:
  high_resolution: true
  filter: duration > 1.0
  bucket_filter: calls > 2
report:
  top_n: 3
export:
  format: sqlite
  sqlite_path: /tmp/runs.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
	assert.True(t, cfg.Waterfall.HighResolution)
	assert.Equal(t, "duration > 1.0", cfg.Waterfall.Filter)
	assert.Equal(t, "calls > 2", cfg.Waterfall.BucketFilter)
	assert.Equal(t, 3, cfg.Report.TopN)
	assert.Equal(t, FormatSQLite, cfg.Export.Format)
	assert.Equal(t, "/tmp/runs.db", cfg.Export.SQLitePath)
	// Fields missing from the file keep their defaults.
	assert.NotNil(t, cfg.Log.Output)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\nreport:\n  top_n: 3\n")

	t.Setenv("WATERFALL_LOG_LEVEL", "error")
	t.Setenv("WATERFALL_TOP_N", "7")
	t.Setenv("WATERFALL_FILTER", `name != "noise"`)
	t.Setenv("WATERFALL_HIGH_RESOLUTION", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 7, cfg.Report.TopN)
	assert.Equal(t, `name != "noise"`, cfg.Waterfall.Filter)
	assert.True(t, cfg.Waterfall.HighResolution)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		env      map[string]string
		errorMsg string
	}{
		{name: "bad yaml", content: "log: [", errorMsg: "failed to parse config"},
		{name: "bad format", content: "export:\n  format: csv\n", errorMsg: "export.format must be one of"},
		{name: "negative top n", content: "report:\n  top_n: -1\n", errorMsg: "cannot be negative"},
		{name: "bad env bool", env: map[string]string{"WATERFALL_LOG_PRETTY": "maybe"}, errorMsg: "WATERFALL_LOG_PRETTY"},
		{name: "bad env int", env: map[string]string{"WATERFALL_TOP_N": "ten"}, errorMsg: "WATERFALL_TOP_N"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/waterfall.yaml")
	assert.Equal(t, "/etc/waterfall.yaml", DefaultPath())
}
