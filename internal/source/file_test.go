package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/margin/internal/models"
)

const sampleDocument = `uri: https://example.com/essay
title: Essay
annotations:
  - id: a1
    user: alice
    text: First note
    created: 2024-03-01T10:00:00Z
    updated: 2024-03-01T10:00:00Z
    target:
      - source: https://example.com/essay
        selector:
          - type: TextQuoteSelector
            exact: the quick brown fox
          - type: TextPositionSelector
            start: 40
            end: 59
  - id: a2
    user: bob
    text: Reply
    references: [a1]
    created: 2024-03-01T11:00:00Z
    updated: 2024-03-01T11:00:00Z
  - id: a3
    uri: https://example.com/other
    user: carol
    text: Elsewhere
    created: 2024-03-02T09:00:00Z
    updated: 2024-03-02T09:00:00Z
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "essay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDocument), 0644))
	return path
}

func TestReadDocumentFillsURI(t *testing.T) {
	doc, err := ReadDocument(writeSample(t))
	require.NoError(t, err)
	require.Equal(t, "Essay", doc.Title)
	require.Len(t, doc.Annotations, 3)
	require.Equal(t, "https://example.com/essay", doc.Annotations[0].URI)
	require.Equal(t, "https://example.com/other", doc.Annotations[2].URI)
	require.Equal(t, "the quick brown fox", models.Quote(doc.Annotations[0]))
	require.Equal(t, 40, models.Location(doc.Annotations[0]))
	require.Equal(t, "a1", doc.Annotations[1].ParentID())
}

func TestReadDocumentErrors(t *testing.T) {
	_, err := ReadDocument(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("annotations: [\n"), 0644))
	_, err = ReadDocument(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("annotations:\n  -\n"), 0644))
	_, err = ReadDocument(path)
	require.ErrorContains(t, err, "annotations[0]")
}

func TestFileSourceLoadFiltersByURI(t *testing.T) {
	src := NewFileSource(writeSample(t))
	ctx := context.Background()

	essay, err := src.Load(ctx, "https://example.com/essay")
	require.NoError(t, err)
	require.Len(t, essay, 2)

	all, err := src.Load(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestFileSourceMissingFileIsEmpty(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "new.yaml"))

	list, err := src.Load(context.Background(), "anything")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestFileSourceCreateUpdateDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "notes.yaml")
	src := NewFileSource(path)
	ctx := context.Background()

	ann := &models.Annotation{URI: "doc", User: "alice", Text: "draft"}
	require.NoError(t, src.Create(ctx, ann))
	require.NotEmpty(t, ann.ID)
	require.FileExists(t, path)

	doc, err := src.Document()
	require.NoError(t, err)
	require.Equal(t, "doc", doc.URI)
	require.Len(t, doc.Annotations, 1)

	require.Error(t, src.Create(ctx, ann), "duplicate id")

	ann.Text = "final"
	require.NoError(t, src.Update(ctx, ann))
	list, err := src.Load(ctx, "doc")
	require.NoError(t, err)
	require.Equal(t, "final", list[0].Text)

	require.ErrorIs(t, src.Update(ctx, &models.Annotation{ID: "nope", URI: "doc", User: "x"}), ErrNotFound)

	require.NoError(t, src.Delete(ctx, ann.ID))
	require.ErrorIs(t, src.Delete(ctx, ann.ID), ErrNotFound)
	list, err = src.Load(ctx, "doc")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestFileSourceCreateValidates(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "notes.yaml"))
	err := src.Create(context.Background(), &models.Annotation{URI: "doc"})
	require.ErrorIs(t, err, models.ErrMissingUser)
}

func TestWriteDocumentRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	doc := &Document{
		URI: "doc",
		Annotations: []*models.Annotation{
			{ID: "x", URI: "doc", User: "u", Tags: []string{"a", "b"}},
		},
	}
	require.NoError(t, WriteDocument(path, doc))

	back, err := ReadDocument(path)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, back.Annotations[0].Tags)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file left behind")
}
