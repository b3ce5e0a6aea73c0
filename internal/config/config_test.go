package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, DefaultScrollRoot, cfg.Sidebar.ScrollRoot)
	require.Equal(t, 100*time.Millisecond, cfg.Sidebar.DebounceInterval)
	require.Equal(t, "location", cfg.Sidebar.SortBy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative busy timeout", func(c *Config) { c.Database.BusyTimeoutMs = -1 }},
		{"zero default height", func(c *Config) { c.Sidebar.DefaultHeight = 0 }},
		{"negative margin", func(c *Config) { c.Sidebar.MarginAbove = -5 }},
		{"negative debounce", func(c *Config) { c.Sidebar.DebounceInterval = -time.Second }},
		{"zero collapsed lines", func(c *Config) { c.Sidebar.CollapsedBodyLines = 0 }},
		{"unknown sort", func(c *Config) { c.Sidebar.SortBy = "random" }},
		{"fast refresh", func(c *Config) { c.TUI.RefreshInterval = time.Millisecond }},
		{"unknown theme", func(c *Config) { c.TUI.Theme = "neon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.DataDir = "/data"
	cfg.Global.ConfigDir = "/conf"

	require.Equal(t, "/data/margin.db", cfg.DatabasePath())
	require.Equal(t, "/data/sidebar-state.json", cfg.StatePath())
	require.Equal(t, "/data/margin.log", cfg.LogPath())
	require.Equal(t, "/conf/context.yaml", cfg.ContextPath())

	cfg.Database.Path = "/elsewhere.db"
	cfg.Logging.File = "/var/log/margin.log"
	require.Equal(t, "/elsewhere.db", cfg.DatabasePath())
	require.Equal(t, "/var/log/margin.log", cfg.LogPath())
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Global.DataDir = filepath.Join(root, "data")
	cfg.Global.ConfigDir = filepath.Join(root, "conf")

	require.NoError(t, cfg.EnsureDirectories())
	require.DirExists(t, cfg.Global.DataDir)
	require.DirExists(t, cfg.Global.ConfigDir)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/margin-test.db
sidebar:
  default_height: 8
  margin_above: 10
  margin_below: 12
  debounce_interval: 250ms
  sort_by: newest
user:
  name: reviewer
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/margin-test.db", cfg.DatabasePath())
	require.Equal(t, 8, cfg.Sidebar.DefaultHeight)
	require.Equal(t, 10, cfg.Sidebar.MarginAbove)
	require.Equal(t, 12, cfg.Sidebar.MarginBelow)
	require.Equal(t, 250*time.Millisecond, cfg.Sidebar.DebounceInterval)
	require.Equal(t, "newest", cfg.Sidebar.SortBy)
	require.Equal(t, "reviewer", cfg.User.Name)
	require.Equal(t, DefaultScrollRoot, cfg.Sidebar.ScrollRoot)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadFromFileInvalid(t *testing.T) {
	path := writeConfig(t, "sidebar:\n  sort_by: sideways\n")
	_, err := LoadFromFile(path)
	require.ErrorContains(t, err, "sort_by")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: warn\nuser:\n  name: from-file\n")
	t.Setenv("MARGIN_LOGGING_LEVEL", "debug")
	t.Setenv("MARGIN_USER_NAME", "from-env")
	t.Setenv("MARGIN_DATABASE_PATH", "~/margin-env.db")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "from-env", cfg.User.Name)

	home, _ := os.UserHomeDir()
	require.Equal(t, filepath.Join(home, "margin-env.db"), cfg.Database.Path)
}

func TestLoaderSetTakesPrecedence(t *testing.T) {
	path := writeConfig(t, "logging:\n  format: console\n")
	t.Setenv("MARGIN_LOGGING_FORMAT", "console")

	loader := NewLoader()
	loader.SetConfigFile(path)
	loader.Set("logging.format", "json")

	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, path, loader.ConfigFileUsed())
}

func TestEnvVar(t *testing.T) {
	require.Equal(t, "MARGIN_SIDEBAR_SCROLL_ROOT", EnvVar("sidebar.scroll_root"))
}

func TestExpandTilde(t *testing.T) {
	home, _ := os.UserHomeDir()
	require.Equal(t, "", expandTilde(""))
	require.Equal(t, home, expandTilde("~"))
	require.Equal(t, filepath.Join(home, "x"), expandTilde("~/x"))
	require.Equal(t, "/abs", expandTilde("/abs"))
}
