package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/tOgg1/margin/internal/models"
	"github.com/tOgg1/margin/internal/source"
)

// DocURI is the document fixtures are attached to.
const DocURI = "https://example.com/doc"

// BaseTime is the creation time of the first fixture annotation.
var BaseTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// Annotations returns n anchored annotations a0..a(n-1) on DocURI. Each
// quotes "quote i" at character offset i*10 and was created i minutes after
// BaseTime.
func Annotations(n int) []*models.Annotation {
	out := make([]*models.Annotation, 0, n)
	for i := range n {
		created := BaseTime.Add(time.Duration(i) * time.Minute)
		out = append(out, &models.Annotation{
			ID:   fmt.Sprintf("a%d", i),
			URI:  DocURI,
			User: "acct:alice@example.com",
			Text: fmt.Sprintf("note %d", i),
			Target: []models.Target{{
				Source: DocURI,
				Selectors: []models.Selector{
					{Type: models.SelectorTextQuote, Exact: fmt.Sprintf("quote %d", i)},
					{Type: models.SelectorTextPosition, Start: i * 10, End: i*10 + 5},
				},
			}},
			Created: created,
			Updated: created,
		})
	}
	return out
}

// Reply returns a reply with id to parent.
func Reply(id string, parent *models.Annotation) *models.Annotation {
	refs := append(append([]string(nil), parent.References...), parent.ID)
	return &models.Annotation{
		ID:         id,
		URI:        parent.URI,
		User:       "acct:bob@example.com",
		Text:       "reply to " + parent.ID,
		References: refs,
		Created:    parent.Created.Add(time.Second),
		Updated:    parent.Created.Add(time.Second),
	}
}

// WriteDocument writes annotations as a YAML document in a temp dir and
// returns its path.
func WriteDocument(t *testing.T, annotations []*models.Annotation) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.yaml")
	if err := source.WriteDocument(path, &source.Document{URI: DocURI, Annotations: annotations}); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
	return path
}
