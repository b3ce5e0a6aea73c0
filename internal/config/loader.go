package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MARGIN_DATABASE_PATH.
const EnvPrefix = "MARGIN"

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		// Config file is optional, only error if explicitly specified
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Viper's Unmarshal doesn't properly merge env vars for nested structs
	l.applyEnvOverrides(cfg)

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandPaths expands ~ in all path-related config fields.
func expandPaths(cfg *Config) {
	cfg.Global.DataDir = expandTilde(cfg.Global.DataDir)
	cfg.Global.ConfigDir = expandTilde(cfg.Global.ConfigDir)
	cfg.Database.Path = expandTilde(cfg.Database.Path)
	cfg.Logging.File = expandTilde(cfg.Logging.File)
}

// setupViper configures Viper with defaults and environment bindings.
func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "margin"))
	}

	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "margin"))
	}

	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.setDefaults(cfg)

	// Explicit bindings; Unmarshal ignores AutomaticEnv for nested keys.
	bindEnvVars(v)

	v.AutomaticEnv()
}

// setDefaults sets all default values in Viper.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	// Global
	v.SetDefault("global.data_dir", cfg.Global.DataDir)
	v.SetDefault("global.config_dir", cfg.Global.ConfigDir)

	// Database
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.busy_timeout_ms", cfg.Database.BusyTimeoutMs)

	// Logging
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)

	// Sidebar
	v.SetDefault("sidebar.default_height", cfg.Sidebar.DefaultHeight)
	v.SetDefault("sidebar.margin_above", cfg.Sidebar.MarginAbove)
	v.SetDefault("sidebar.margin_below", cfg.Sidebar.MarginBelow)
	v.SetDefault("sidebar.debounce_interval", cfg.Sidebar.DebounceInterval)
	v.SetDefault("sidebar.scroll_root", cfg.Sidebar.ScrollRoot)
	v.SetDefault("sidebar.sort_by", cfg.Sidebar.SortBy)
	v.SetDefault("sidebar.collapsed_body_lines", cfg.Sidebar.CollapsedBodyLines)

	// TUI
	v.SetDefault("tui.refresh_interval", cfg.TUI.RefreshInterval)
	v.SetDefault("tui.theme", cfg.TUI.Theme)

	// User
	v.SetDefault("user.name", cfg.User.Name)
}

// loadConfigFile attempts to load the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}

	return nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Get returns a Viper value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a Viper value by key. Values set before Load take precedence over
// the file and environment, which is how CLI flags are applied.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// Viper returns the underlying Viper instance for advanced use.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	loader := NewLoader()
	return loader.Load()
}

// envKeys lists every key that accepts an environment override.
var envKeys = []string{
	"global.data_dir",
	"global.config_dir",
	"database.path",
	"database.busy_timeout_ms",
	"logging.level",
	"logging.format",
	"logging.file",
	"logging.enable_caller",
	"sidebar.default_height",
	"sidebar.margin_above",
	"sidebar.margin_below",
	"sidebar.debounce_interval",
	"sidebar.scroll_root",
	"sidebar.sort_by",
	"sidebar.collapsed_body_lines",
	"tui.refresh_interval",
	"tui.theme",
	"user.name",
}

// EnvVar returns the environment variable bound to key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// bindEnvVars binds environment variables for config keys.
func bindEnvVars(v *viper.Viper) {
	for _, key := range envKeys {
		_ = v.BindEnv(key, EnvVar(key))
	}
}

// applyEnvOverrides copies values Unmarshal may have missed for nested
// fields when a config file is present.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	v := l.v

	if path := v.GetString("database.path"); path != "" {
		cfg.Database.Path = path
	}
	if dataDir := v.GetString("global.data_dir"); dataDir != "" {
		cfg.Global.DataDir = dataDir
	}
	if configDir := v.GetString("global.config_dir"); configDir != "" {
		cfg.Global.ConfigDir = configDir
	}
	if level := v.GetString("logging.level"); level != "" {
		cfg.Logging.Level = level
	}
	if format := v.GetString("logging.format"); format != "" {
		cfg.Logging.Format = format
	}
	if file := v.GetString("logging.file"); file != "" {
		cfg.Logging.File = file
	}
	if name := v.GetString("user.name"); name != "" {
		cfg.User.Name = name
	}
	if sortBy := v.GetString("sidebar.sort_by"); sortBy != "" {
		cfg.Sidebar.SortBy = sortBy
	}
}
