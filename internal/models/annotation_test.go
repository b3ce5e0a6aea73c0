package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func anchored(text string, tags ...string) *Annotation {
	return &Annotation{
		ID:   "a1",
		URI:  "https://example.com",
		Text: text,
		Tags: tags,
		Target: []Target{{
			Source:    "https://example.com",
			Selectors: []Selector{{Type: SelectorTextQuote, Exact: "quoted"}, {Type: SelectorTextPosition, Start: 42, End: 48}},
		}},
	}
}

func TestAnnotationKindPredicates(t *testing.T) {
	tests := []struct {
		name      string
		ann       *Annotation
		reply     bool
		pageNote  bool
		highlight bool
	}{
		{name: "nil", ann: nil},
		{name: "page note", ann: &Annotation{ID: "p", Text: "note"}, pageNote: true},
		{name: "empty page note is not a highlight", ann: &Annotation{ID: "p"}, pageNote: true},
		{name: "highlight", ann: anchored(""), highlight: true},
		{name: "annotation with text", ann: anchored("text")},
		{name: "annotation with tags", ann: anchored("", "tag")},
		{name: "reply", ann: &Annotation{ID: "r", References: []string{"a1"}}, reply: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.reply, IsReply(tt.ann))
			require.Equal(t, tt.pageNote, IsPageNote(tt.ann))
			require.Equal(t, tt.highlight, IsHighlight(tt.ann))
		})
	}
}

func TestHiddenAnnotationIsNotHighlight(t *testing.T) {
	ann := anchored("")
	ann.Hidden = true
	require.False(t, IsHighlight(ann))
}

func TestAnnotationKeyPrefersID(t *testing.T) {
	require.Equal(t, "id1", (&Annotation{ID: "id1", Tag: "t1"}).Key())
	require.Equal(t, "t1", (&Annotation{Tag: " t1 "}).Key())
	require.True(t, IsNew(&Annotation{Tag: "t1"}))
	require.False(t, IsNew(&Annotation{ID: "x"}))
}

func TestAnnotationParentIsLastReference(t *testing.T) {
	ann := &Annotation{References: []string{"root", "mid"}}
	require.Equal(t, "mid", ann.ParentID())
	require.Equal(t, "", (&Annotation{}).ParentID())
}

func TestQuoteAndLocation(t *testing.T) {
	ann := anchored("text")
	require.Equal(t, "quoted", Quote(ann))
	require.Equal(t, 42, Location(ann))
	require.Equal(t, -1, Location(&Annotation{}))
}

func TestCloneIsDeep(t *testing.T) {
	ann := anchored("text", "a")
	clone := ann.Clone()
	clone.Tags[0] = "b"
	clone.Target[0].Selectors[0].Exact = "changed"
	require.Equal(t, "a", ann.Tags[0])
	require.Equal(t, "quoted", ann.Target[0].Selectors[0].Exact)
}
