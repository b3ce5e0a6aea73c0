package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/margin/internal/models"
	"github.com/tOgg1/margin/internal/source"
)

var (
	annotateReplyTo string
	annotateTags    []string
	annotateQuote   string
	annotateStart   int
	annotateUser    string
)

func init() {
	rootCmd.AddCommand(annotateCmd)
	flags := annotateCmd.Flags()
	flags.StringVar(&annotateReplyTo, "reply-to", "", "annotation ID to reply to")
	flags.StringSliceVarP(&annotateTags, "tag", "t", nil, "tag (repeatable)")
	flags.StringVar(&annotateQuote, "quote", "", "quoted document text the annotation anchors to")
	flags.IntVar(&annotateStart, "start", -1, "character offset of the quote in the document")
	flags.StringVar(&annotateUser, "user", "", "author (default: user.name from config)")
}

var annotateCmd = &cobra.Command{
	Use:   "annotate [uri] [text]",
	Short: "Add an annotation, highlight, or reply",
	Long: `Add an annotation to a document. Without --quote it is a page note.
With --quote and no text or tags it is a highlight. Text is read from stdin
when it is not given as an argument and stdin is not a terminal.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri, err := resolveURI(args)
		if err != nil {
			return err
		}
		text := ""
		if len(args) > 1 {
			text = args[1]
		} else if !term.IsTerminal(int(os.Stdin.Fd())) {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read text from stdin: %w", err)
			}
			text = string(data)
		}

		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		ann, err := buildAnnotation(cmd.Context(), b.source, uri, strings.TrimSpace(text))
		if err != nil {
			return err
		}
		if err := b.service.Create(cmd.Context(), ann); err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), ann)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s on %s\n", annotationKind(ann), ann.ID, ann.URI)
		PrintNextSteps(HintContext{Action: "annotate", URI: ann.URI, AnnotationID: ann.ID})
		return nil
	},
}

func buildAnnotation(ctx context.Context, src source.Source, uri, text string) (*models.Annotation, error) {
	user := strings.TrimSpace(annotateUser)
	if user == "" {
		user = GetConfig().User.Name
	}
	ann := &models.Annotation{
		URI:  uri,
		User: user,
		Text: text,
		Tags: slices.DeleteFunc(slices.Clone(annotateTags), func(tag string) bool {
			return strings.TrimSpace(tag) == ""
		}),
	}

	if annotateReplyTo != "" {
		if annotateQuote != "" {
			return nil, &ExitError{Code: ExitUsage, Err: fmt.Errorf("--quote cannot be combined with --reply-to")}
		}
		parent, err := findAnnotation(ctx, src, uri, annotateReplyTo)
		if err != nil {
			return nil, err
		}
		ann.References = append(slices.Clone(parent.References), parent.ID)
		return ann, nil
	}

	target := models.Target{Source: uri}
	if quote := strings.TrimSpace(annotateQuote); quote != "" {
		target.Selectors = append(target.Selectors, models.Selector{Type: models.SelectorTextQuote, Exact: quote})
		if annotateStart >= 0 {
			target.Selectors = append(target.Selectors, models.Selector{
				Type:  models.SelectorTextPosition,
				Start: annotateStart,
				End:   annotateStart + len(quote),
			})
		}
	}
	ann.Target = []models.Target{target}

	if text == "" && len(ann.Tags) == 0 && !models.HasSelector(ann) {
		return nil, &ExitError{Code: ExitUsage, Err: fmt.Errorf("a page note needs text or tags")}
	}
	return ann, nil
}

func findAnnotation(ctx context.Context, src source.Source, uri, id string) (*models.Annotation, error) {
	annotations, err := src.Load(ctx, uri)
	if err != nil {
		return nil, err
	}
	for _, ann := range annotations {
		if ann.ID == id {
			return ann, nil
		}
	}
	return nil, notFound(fmt.Errorf("annotation %s on %s: %w", id, uri, source.ErrNotFound))
}

func annotationKind(ann *models.Annotation) string {
	switch {
	case models.IsReply(ann):
		return "reply"
	case models.IsPageNote(ann):
		return "page note"
	case models.IsHighlight(ann):
		return "highlight"
	default:
		return "annotation"
	}
}
