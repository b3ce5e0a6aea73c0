package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/margin/internal/logging"
	"github.com/tOgg1/margin/internal/sidebar"
	"github.com/tOgg1/margin/internal/store"
)

var viewTitle string

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().StringVar(&viewTitle, "title", "", "header title (default: the document URI)")
}

var viewCmd = &cobra.Command{
	Use:   "view [uri]",
	Short: "Open the annotation sidebar",
	Long: `Open the interactive sidebar for a document. Threads are rendered in a
window around the viewport, so long documents stay responsive.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if IsNonInteractive() || !hasTTY() {
			return &PreflightError{
				Message:  "the sidebar requires an interactive terminal",
				Hint:     "Run with a TTY, or use 'margin list' for plain output",
				NextStep: "margin list",
			}
		}
		uri, err := resolveURI(args)
		if err != nil {
			return err
		}
		return runSidebar(uri)
	},
}

func runSidebar(uri string) error {
	cfg := GetConfig()

	// The sidebar owns the terminal; logs go to a file.
	logFile, err := logging.OpenFile(cfg.LogPath())
	if err != nil {
		return err
	}
	defer logFile.Close()
	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       "json",
		Output:       logFile,
		EnableCaller: cfg.Logging.EnableCaller,
	})

	b, err := openBackend()
	if err != nil {
		return err
	}
	defer b.Close()

	prefs := store.NewPrefs(cfg.StatePath())
	if err := prefs.Load(); err != nil {
		logging.Warn().Err(err).Msg("sidebar state unreadable, using defaults")
	}
	defer func() {
		if err := prefs.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "warning: save sidebar state:", err)
		}
	}()

	theme := prefs.Snapshot().Theme
	if theme == "" {
		theme = cfg.TUI.Theme
	}
	return sidebar.Run(sidebar.Config{
		URI:             uri,
		Title:           viewTitle,
		Service:         b.service,
		Publisher:       b.publisher,
		Prefs:           prefs,
		WatchPath:       b.watchPath,
		User:            cfg.User.Name,
		Theme:           theme,
		RefreshInterval: cfg.TUI.RefreshInterval,
		Sidebar:         cfg.Sidebar,
	})
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// terminalWidth returns the stdout width, or fallback when not a terminal.
func terminalWidth(fallback int) int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallback
	}
	return width
}
