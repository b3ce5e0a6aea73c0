package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/margin/internal/config"
)

var (
	useTitle string
	useClear bool
)

func init() {
	rootCmd.AddCommand(useCmd)
	useCmd.Flags().StringVar(&useTitle, "title", "", "display name for the document")
	useCmd.Flags().BoolVar(&useClear, "clear", false, "forget the selected document")
}

var useCmd = &cobra.Command{
	Use:   "use [uri]",
	Short: "Select the document other commands default to",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contexts := config.NewContextStore(GetConfig().ContextPath())
		out := cmd.OutOrStdout()

		if useClear {
			if err := contexts.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Cleared selected document")
			return nil
		}

		current, err := contexts.Load()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			if IsJSONOutput() || IsJSONLOutput() {
				return WriteOutput(out, current)
			}
			fmt.Fprintln(out, current.String())
			return nil
		}

		current.SetDocument(strings.TrimSpace(args[0]), strings.TrimSpace(useTitle))
		if err := contexts.Save(current); err != nil {
			return err
		}
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(out, current)
		}
		fmt.Fprintf(out, "Using %s\n", current.String())
		PrintNextSteps(HintContext{Action: "use", URI: current.URI})
		return nil
	},
}
