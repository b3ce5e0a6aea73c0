package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/margin/internal/db"
	"github.com/tOgg1/margin/internal/models"
	"github.com/tOgg1/margin/internal/source"
)

var (
	exportTitle string
	importURI   string
)

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(documentsCmd)
	exportCmd.Flags().StringVar(&exportTitle, "title", "", "document title written to the file")
	importCmd.Flags().StringVar(&importURI, "uri", "", "override the document URI in the file")
}

var exportCmd = &cobra.Command{
	Use:   "export <uri> <file>",
	Short: "Export a document's annotations to YAML",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		uri := strings.TrimSpace(args[0])
		annotations, err := b.service.Load(cmd.Context(), uri)
		if err != nil {
			return err
		}
		doc := &source.Document{URI: uri, Title: exportTitle, Annotations: annotations}
		if err := source.WriteDocument(args[1], doc); err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), map[string]any{"uri": uri, "file": args[1], "count": len(annotations)})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d annotations to %s\n", len(annotations), args[1])
		return nil
	},
}

// ImportResult summarizes `margin import`.
type ImportResult struct {
	URI      string `json:"uri"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import annotations from a YAML document into the database",
	Long: `Import annotations from a YAML document. Annotations whose ID already
exists are skipped, so importing the same file twice is harmless.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := source.ReadDocument(args[0])
		if err != nil {
			return err
		}
		if importURI != "" {
			doc.URI = importURI
			for _, ann := range doc.Annotations {
				ann.URI = importURI
			}
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		result, err := importDocument(cmd.Context(), db.NewAnnotationRepository(database), doc)
		if err != nil {
			return err
		}
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d annotations into %s (%d already present)\n", result.Imported, result.URI, result.Skipped)
		PrintNextSteps(HintContext{Action: "import", URI: result.URI})
		return nil
	},
}

func importDocument(ctx context.Context, repo *db.AnnotationRepository, doc *source.Document) (*ImportResult, error) {
	result := &ImportResult{URI: doc.URI}
	for _, ann := range orderForImport(doc.Annotations) {
		if ann.ID != "" {
			_, err := repo.Get(ctx, ann.ID)
			if err == nil {
				result.Skipped++
				continue
			}
			if !errors.Is(err, db.ErrAnnotationNotFound) {
				return nil, err
			}
		}
		if err := repo.Create(ctx, ann); err != nil {
			return nil, fmt.Errorf("import %s: %w", ann.Key(), err)
		}
		result.Imported++
	}
	return result, nil
}

// orderForImport puts parents before their replies.
func orderForImport(annotations []*models.Annotation) []*models.Annotation {
	out := make([]*models.Annotation, 0, len(annotations))
	for _, ann := range annotations {
		if !models.IsReply(ann) {
			out = append(out, ann)
		}
	}
	for _, ann := range annotations {
		if models.IsReply(ann) {
			out = append(out, ann)
		}
	}
	return out
}

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "List annotated documents in the database",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		docs, err := db.NewAnnotationRepository(database).ListURIs(cmd.Context())
		if err != nil {
			return err
		}
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), docs)
		}
		if len(docs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No annotated documents")
			return nil
		}
		rows := make([][]string, 0, len(docs))
		for _, doc := range docs {
			rows = append(rows, []string{doc.URI, fmt.Sprint(doc.Count), doc.Updated.Local().Format("2006-01-02 15:04")})
		}
		return writeTable(cmd.OutOrStdout(), []string{"URI", "ANNOTATIONS", "UPDATED"}, rows)
	},
}
