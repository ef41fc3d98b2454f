package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "v1.0", cfg.Format.SupportedVersion)
	assert.Equal(t, 16, cfg.Format.MinColumns)
	assert.Equal(t, 64, cfg.Format.PreviewLength)
	assert.Equal(t, ',', cfg.Format.DelimiterRune())
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Processing.MaxConcurrency)
	assert.Equal(t, "{uuid}.xml", cfg.Processing.OutputNameFormat)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
format:
  supported_version: v2.1
  min_columns: 20
store:
  driver: postgres
  dsn: host=localhost user=invoicer dbname=invoicer
processing:
  max_concurrency: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "v2.1", cfg.Format.SupportedVersion)
	assert.Equal(t, 20, cfg.Format.MinColumns)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Processing.MaxConcurrency)
	// untouched keys keep their defaults
	assert.Equal(t, 64, cfg.Format.PreviewLength)
	assert.Equal(t, "./input", cfg.Directories.InputDir)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "v1.0", cfg.Format.SupportedVersion)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("INVOICER_STORE_DSN", "file::memory:")
	t.Setenv("INVOICER_FORMAT_SUPPORTED_VERSION", "v1.1")

	cfg, err := Load(writeConfig(t, "store:\n  dsn: from-file.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "file::memory:", cfg.Store.DSN)
	assert.Equal(t, "v1.1", cfg.Format.SupportedVersion)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad version tag", func(c *Config) { c.Format.SupportedVersion = "1.0" }},
		{"zero columns", func(c *Config) { c.Format.MinColumns = 0 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "oracle" }},
		{"empty dsn", func(c *Config) { c.Store.DSN = "" }},
		{"long delimiter", func(c *Config) { c.Format.Delimiter = ";;" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("concurrency clamps to one", func(t *testing.T) {
		cfg := Default()
		cfg.Processing.MaxConcurrency = 0
		require.NoError(t, cfg.Validate())
		assert.Equal(t, 1, cfg.Processing.MaxConcurrency)
	})

	t.Run("tab delimiter", func(t *testing.T) {
		cfg := Default()
		cfg.Format.Delimiter = "tab"
		require.NoError(t, cfg.Validate())
		assert.Equal(t, '\t', cfg.Format.DelimiterRune())
	})
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Directories = DirectorySettings{
		InputDir:        filepath.Join(root, "in"),
		OutputDir:       filepath.Join(root, "out"),
		InputArchiveDir: filepath.Join(root, "in", "archive"),
	}

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, filepath.Join(root, "in", "archive"))
	assert.DirExists(t, filepath.Join(root, "out"))
}
