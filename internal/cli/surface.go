package cli

import (
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// SurfaceCommand describes one command of the CLI.
type SurfaceCommand struct {
	Name        string           `json:"name"`
	Aliases     []string         `json:"aliases,omitempty"`
	Short       string           `json:"short"`
	Flags       []SurfaceFlag    `json:"flags,omitempty"`
	Subcommands []SurfaceCommand `json:"subcommands,omitempty"`
}

// SurfaceFlag describes one flag.
type SurfaceFlag struct {
	Long    string `json:"long"`
	Short   string `json:"short,omitempty"`
	Type    string `json:"type"`
	Default string `json:"default,omitempty"`
}

// SurfaceManifest is the machine-readable command tree, used by shell
// integrations and editor plugins to discover commands.
type SurfaceManifest struct {
	CLI         string           `json:"cli"`
	GlobalFlags []SurfaceFlag    `json:"global_flags"`
	Commands    []SurfaceCommand `json:"commands"`
}

func init() {
	rootCmd.AddCommand(commandsCmd)
}

var commandsCmd = &cobra.Command{
	Use:    "commands",
	Short:  "Print the command tree as JSON",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return WriteOutput(cmd.OutOrStdout(), extractManifest(rootCmd, "margin"))
	},
}

func extractManifest(root *cobra.Command, name string) SurfaceManifest {
	return SurfaceManifest{
		CLI:         name,
		GlobalFlags: extractFlags(root.PersistentFlags()),
		Commands:    extractSubcommands(root),
	}
}

func extractSubcommands(cmd *cobra.Command) []SurfaceCommand {
	var cmds []SurfaceCommand
	for _, c := range cmd.Commands() {
		if c.Hidden || c.Name() == "help" {
			continue
		}
		cmds = append(cmds, SurfaceCommand{
			Name:        c.Name(),
			Aliases:     c.Aliases,
			Short:       c.Short,
			Flags:       extractFlags(c.LocalNonPersistentFlags()),
			Subcommands: extractSubcommands(c),
		})
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

func extractFlags(fs *pflag.FlagSet) []SurfaceFlag {
	var flags []SurfaceFlag
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "help" {
			return
		}
		flags = append(flags, SurfaceFlag{
			Long:    f.Name,
			Short:   f.Shorthand,
			Type:    f.Value.Type(),
			Default: f.DefValue,
		})
	})
	sort.Slice(flags, func(i, j int) bool { return flags[i].Long < flags[j].Long })
	return flags
}
