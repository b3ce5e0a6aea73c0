// Package config handles margin configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/tOgg1/margin/internal/threading"
)

// DefaultScrollRoot names the sidebar's scroll container.
const DefaultScrollRoot = "js-thread-list-scroll-root"

// Config is the root configuration structure for margin.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Database settings
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Sidebar windowing and layout settings
	Sidebar SidebarConfig `yaml:"sidebar" mapstructure:"sidebar"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`

	// User identity for new annotations
	User UserConfig `yaml:"user" mapstructure:"user"`
}

// GlobalConfig contains global margin settings.
type GlobalConfig struct {
	// DataDir is where margin stores its data (default: ~/.local/share/margin).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/margin).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeout is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path. The sidebar always logs to a file.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// SidebarConfig tunes the windowed thread list. Heights and margins are in
// terminal rows.
type SidebarConfig struct {
	// DefaultHeight is assumed for threads that have not been measured yet.
	DefaultHeight int `yaml:"default_height" mapstructure:"default_height"`

	// MarginAbove is the overscan kept rendered above the viewport.
	MarginAbove int `yaml:"margin_above" mapstructure:"margin_above"`

	// MarginBelow is the overscan kept rendered below the viewport.
	MarginBelow int `yaml:"margin_below" mapstructure:"margin_below"`

	// DebounceInterval delays recomputation after scroll and resize.
	DebounceInterval time.Duration `yaml:"debounce_interval" mapstructure:"debounce_interval"`

	// ScrollRoot names the scroll container in diagnostics.
	ScrollRoot string `yaml:"scroll_root" mapstructure:"scroll_root"`

	// SortBy is the initial thread order (newest, oldest, location).
	SortBy string `yaml:"sort_by" mapstructure:"sort_by"`

	// CollapsedBodyLines is how many body lines show before "More".
	CollapsedBodyLines int `yaml:"collapsed_body_lines" mapstructure:"collapsed_body_lines"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// RefreshInterval is how often the file source is polled when fsnotify
	// is unavailable.
	RefreshInterval time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval"`

	// Theme is the color theme (default, high-contrast).
	Theme string `yaml:"theme" mapstructure:"theme"`
}

// UserConfig identifies the local author.
type UserConfig struct {
	// Name is recorded as the user of new annotations. Defaults to $USER.
	Name string `yaml:"name" mapstructure:"name"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "margin"),
			ConfigDir: filepath.Join(homeDir, ".config", "margin"),
		},
		Database: DatabaseConfig{
			Path:          "", // Will be set to DataDir/margin.db
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Sidebar: SidebarConfig{
			DefaultHeight:      6,
			MarginAbove:        24,
			MarginBelow:        24,
			DebounceInterval:   100 * time.Millisecond,
			ScrollRoot:         DefaultScrollRoot,
			SortBy:             string(threading.SortLocation),
			CollapsedBodyLines: 4,
		},
		TUI: TUIConfig{
			RefreshInterval: 2 * time.Second,
			Theme:           "default",
		},
		User: UserConfig{
			Name: os.Getenv("USER"),
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.BusyTimeoutMs < 0 {
		return fmt.Errorf("database.busy_timeout_ms must not be negative")
	}

	if c.Sidebar.DefaultHeight < 1 {
		return fmt.Errorf("sidebar.default_height must be at least 1")
	}

	if c.Sidebar.MarginAbove < 0 || c.Sidebar.MarginBelow < 0 {
		return fmt.Errorf("sidebar margins must not be negative")
	}

	if c.Sidebar.DebounceInterval < 0 {
		return fmt.Errorf("sidebar.debounce_interval must not be negative")
	}

	if c.Sidebar.CollapsedBodyLines < 1 {
		return fmt.Errorf("sidebar.collapsed_body_lines must be at least 1")
	}

	if !slices.Contains(threading.SortKeys, threading.SortKey(c.Sidebar.SortBy)) {
		return fmt.Errorf("sidebar.sort_by must be one of newest, oldest, location")
	}

	if c.TUI.RefreshInterval < 100*time.Millisecond {
		return fmt.Errorf("tui.refresh_interval must be at least 100ms")
	}

	switch c.TUI.Theme {
	case "default", "high-contrast":
	default:
		return fmt.Errorf("tui.theme must be one of default, high-contrast")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "margin.db")
}

// StatePath returns the sidebar preferences file.
func (c *Config) StatePath() string {
	return filepath.Join(c.Global.DataDir, "sidebar-state.json")
}

// LogPath returns the log file used while the sidebar owns the terminal.
func (c *Config) LogPath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.Global.DataDir, "margin.log")
}

// ContextPath returns the CLI context file.
func (c *Config) ContextPath() string {
	return filepath.Join(c.Global.ConfigDir, "context.yaml")
}
