package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/margin/internal/models"
	"github.com/tOgg1/margin/internal/sidebar/styles"
	"github.com/tOgg1/margin/internal/threading"
)

const (
	defaultListWidth = 100
	minSnippetWidth  = 16
)

var listSort string

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listSort, "sort", "", "thread order: location, newest, oldest (default from config)")
}

// ThreadSummary is one top-level thread in `margin list` output.
type ThreadSummary struct {
	ID       string    `json:"id"`
	User     string    `json:"user"`
	Kind     string    `json:"kind"`
	Quote    string    `json:"quote,omitempty"`
	Text     string    `json:"text,omitempty"`
	Tags     []string  `json:"tags,omitempty"`
	Replies  int       `json:"replies"`
	Location int       `json:"location"`
	Created  time.Time `json:"created"`
}

var listCmd = &cobra.Command{
	Use:   "list [uri]",
	Short: "List annotation threads on a document",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri, err := resolveURI(args)
		if err != nil {
			return err
		}
		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		annotations, err := b.service.Load(cmd.Context(), uri)
		if err != nil {
			return err
		}

		sortKey := GetConfig().Sidebar.SortBy
		if listSort != "" {
			sortKey = listSort
		}
		summaries := summarizeThreads(annotations, threading.ParseSortKey(sortKey))

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), summaries)
		}
		if len(summaries) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No annotations on %s\n", uri)
			return nil
		}
		return writeTable(cmd.OutOrStdout(), []string{"ID", "USER", "KIND", "REPLIES", "NOTE"}, summaryRows(summaries, terminalWidth(defaultListWidth)))
	},
}

func summarizeThreads(annotations []*models.Annotation, sortKey threading.SortKey) []ThreadSummary {
	root := threading.Build(annotations, threading.Options{Sort: sortKey})
	out := make([]ThreadSummary, 0, len(root.Children))
	for _, thread := range threading.TopLevel(root) {
		ann := thread.Annotation
		if ann == nil {
			continue
		}
		out = append(out, ThreadSummary{
			ID:       thread.ID,
			User:     ann.User,
			Kind:     annotationKind(ann),
			Quote:    models.Quote(ann),
			Text:     ann.Text,
			Tags:     ann.Tags,
			Replies:  thread.ReplyCount,
			Location: models.Location(ann),
			Created:  ann.Created,
		})
	}
	return out
}

// summaryRows fits the note column to the terminal width.
func summaryRows(summaries []ThreadSummary, width int) [][]string {
	rows := make([][]string, 0, len(summaries))
	fixed := 0
	for _, s := range summaries {
		fixed = max(fixed, len(s.ID)+len(styles.DisplayName(s.User))+len(s.Kind)+len("REPLIES"))
	}
	snippetWidth := max(minSnippetWidth, width-fixed-4*tablePadding)

	for _, s := range summaries {
		note := strings.Join(strings.Fields(s.Text), " ")
		if s.Quote != "" {
			quote := "\"" + strings.Join(strings.Fields(s.Quote), " ") + "\""
			note = strings.TrimSpace(quote + " " + note)
		}
		if len(s.Tags) > 0 {
			note = strings.TrimSpace(note + " [" + strings.Join(s.Tags, ", ") + "]")
		}
		rows = append(rows, []string{
			s.ID,
			styles.DisplayName(s.User),
			s.Kind,
			strconv.Itoa(s.Replies),
			styles.TruncateWidth(note, snippetWidth),
		})
	}
	return rows
}
