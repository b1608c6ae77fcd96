package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig().Database.Path, cfg.Database.Path)
	assert.True(t, cfg.Library.PreserveFavorites)
	assert.False(t, cfg.Library.WatchRemovals)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# mediaplus configuration"))
	assert.Contains(t, string(data), "[library]")
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/tmp/catalog.db"
max_connections = 2
busy_timeout_ms = 100
busy_retries = 5

[library]
roots = ["/srv/music", "/srv/video"]
preserve_favorites = false
watch_removals = true

[logging]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/catalog.db", cfg.Database.Path)
	assert.Equal(t, 5, cfg.Database.BusyRetries)
	assert.Equal(t, []string{"/srv/music", "/srv/video"}, cfg.Library.Roots)
	assert.False(t, cfg.Library.PreserveFavorites)
	assert.True(t, cfg.Library.WatchRemovals)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultConfig().Library.ScanBatchSize, cfg.Library.ScanBatchSize)
}

func TestLoadConfigRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"loud\"\n"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MEDIAPLUS_DB_PATH":       "/data/x.db",
		"MEDIAPLUS_LIBRARY_ROOTS": "/a" + string(os.PathListSeparator) + " /b ",
		"MEDIAPLUS_LOG_LEVEL":     "WARN",
		"MEDIAPLUS_SERVER_PORT":   "9999",
		"MEDIAPLUS_SCAN_WORKERS":  "not-a-number",
	}
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "/data/x.db", cfg.Database.Path)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Library.Roots)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, DefaultConfig().Library.ScanWorkers, cfg.Library.ScanWorkers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"empty port", func(c *Config) { c.Server.Port = "" }, "server port"},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, "database path"},
		{"zero retries", func(c *Config) { c.Database.BusyRetries = 0 }, "busy retries"},
		{"no roots", func(c *Config) { c.Library.Roots = nil }, "library root"},
		{"format without dot", func(c *Config) { c.Library.AudioFormats = []string{"mp3"} }, "must start with a dot"},
		{"zero batch", func(c *Config) { c.Library.ScanBatchSize = 0 }, "batch size"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
