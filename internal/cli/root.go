// Package cli implements the margin command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tOgg1/margin/internal/config"
	"github.com/tOgg1/margin/internal/logging"
)

var (
	cfgFile        string
	dbPath         string
	docFile        string
	logLevel       string
	logFormat      string
	jsonOutput     bool
	jsonlOutput    bool
	verbose        bool
	nonInteractive bool

	appConfig *config.Config
	loader    *config.Loader
)

var rootCmd = &cobra.Command{
	Use:   "margin",
	Short: "Annotate documents from the terminal",
	Long: `margin keeps threaded annotations on documents and shows them in a
windowed terminal sidebar that stays fast on documents with thousands of
threads.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ~/.config/margin/config.yaml)")
	flags.StringVar(&dbPath, "db", "", "SQLite database path")
	flags.StringVarP(&docFile, "file", "f", "", "YAML annotation document to use instead of the database")
	flags.StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "log format (console, json)")
	flags.BoolVar(&jsonOutput, "json", false, "output JSON")
	flags.BoolVar(&jsonlOutput, "jsonl", false, "output JSON lines")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose diagnostics on stderr")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "never start the interactive sidebar")
}

// Execute runs the root command and returns the process exit code.
func Execute(version string) int {
	rootCmd.Version = version
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	return reportError(os.Stderr, err)
}

func reportError(out io.Writer, err error) int {
	var preflight *PreflightError
	if errors.As(err, &preflight) {
		fmt.Fprintln(out, "Error:", preflight.Message)
		if preflight.Hint != "" {
			fmt.Fprintln(out, "Hint: ", preflight.Hint)
		}
		if preflight.NextStep != "" {
			fmt.Fprintln(out, "Try:  ", preflight.NextStep)
		}
		return ExitUsage
	}

	fmt.Fprintln(out, "Error:", err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

func initConfig(cmd *cobra.Command, _ []string) error {
	loader = config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}

	v := loader.Viper()
	flags := cmd.Flags()
	for key, name := range map[string]string{
		"database.path":  "db",
		"logging.level":  "log-level",
		"logging.format": "log-format",
	} {
		if flag := flags.Lookup(name); flag != nil && flag.Changed {
			if err := v.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}

	cfg, err := loader.Load()
	if err != nil {
		return &ExitError{Code: ExitConfig, Err: err}
	}
	appConfig = cfg

	logCfg := logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	}
	if verbose && logLevel == "" {
		logCfg.Level = "debug"
	}
	logging.Init(logCfg)
	logging.Debug().Str("config", loader.ConfigFileUsed()).Msg("configuration loaded")
	return nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

// IsJSONOutput reports whether --json was given.
func IsJSONOutput() bool { return jsonOutput }

// IsJSONLOutput reports whether --jsonl was given.
func IsJSONLOutput() bool { return jsonlOutput }

// IsVerbose reports whether --verbose was given.
func IsVerbose() bool { return verbose }

// IsNonInteractive reports whether interactive UI is disabled.
func IsNonInteractive() bool {
	return nonInteractive || os.Getenv(config.EnvVar("non_interactive")) == "1"
}
