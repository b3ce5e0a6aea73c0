package cli

import (
	"fmt"
	"io"
	"os"
)

// HintContext provides context for generating relevant next steps.
type HintContext struct {
	// Action is the command that was executed (e.g., "annotate", "import").
	Action string

	// URI is the document involved.
	URI string

	// AnnotationID is the annotation involved (if any).
	AnnotationID string
}

// PrintNextSteps prints contextual next steps after a successful command.
// Does nothing if JSON output is enabled.
func PrintNextSteps(ctx HintContext) {
	printNextSteps(os.Stdout, ctx)
}

func printNextSteps(out io.Writer, ctx HintContext) {
	if IsJSONOutput() || IsJSONLOutput() {
		return
	}

	hints := generateHints(ctx)
	if len(hints) == 0 {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	for _, hint := range hints {
		fmt.Fprintf(out, "  %s\n", hint)
	}
}

// generateHints generates context-aware hints for the given action.
func generateHints(ctx HintContext) []string {
	switch ctx.Action {
	case "annotate":
		return hintsForAnnotate(ctx)
	case "import":
		return hintsForImport(ctx)
	case "use":
		return hintsForUse(ctx)
	default:
		return nil
	}
}

func hintsForAnnotate(ctx HintContext) []string {
	hints := []string{
		fmt.Sprintf("margin view %s                # open the sidebar", ctx.URI),
	}
	if ctx.AnnotationID != "" {
		hints = append(hints, fmt.Sprintf("margin annotate %s --reply-to %s \"...\"  # reply", ctx.URI, ctx.AnnotationID))
	}
	return hints
}

func hintsForImport(ctx HintContext) []string {
	return []string{
		fmt.Sprintf("margin list %s   # list threads", ctx.URI),
		fmt.Sprintf("margin use %s    # make it the default document", ctx.URI),
	}
}

func hintsForUse(ctx HintContext) []string {
	return []string{
		"margin view    # open the sidebar",
		"margin list    # list threads",
	}
}
