package threading

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/margin/internal/models"
)

var base = time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC)

func ann(id string, offset time.Duration, refs ...string) *models.Annotation {
	return &models.Annotation{
		ID:         id,
		URI:        "https://example.com/doc",
		User:       "acct:alice",
		Text:       "body of " + id,
		References: refs,
		Created:    base.Add(offset),
		Updated:    base.Add(offset),
	}
}

func anchoredAt(a *models.Annotation, start int) *models.Annotation {
	a.Target = []models.Target{{
		Source:    a.URI,
		Selectors: []models.Selector{{Type: models.SelectorTextPosition, Start: start, End: start + 5}},
	}}
	return a
}

func TestBuildBasicChain(t *testing.T) {
	root := Build([]*models.Annotation{
		ann("a", 0),
		ann("b", time.Second, "a"),
		ann("c", 2*time.Second, "a", "b"),
	}, Options{})

	require.Equal(t, []string{"a"}, TopLevelIDs(root))
	top := root.Children[0]
	require.Equal(t, 2, top.ReplyCount)
	require.Equal(t, 0, top.Depth)

	flat := Flatten(top)
	require.Len(t, flat, 3)
	require.Equal(t, "a", flat[0].ID)
	require.Equal(t, "b", flat[1].ID)
	require.Equal(t, "c", flat[2].ID)
	require.Equal(t, 2, flat[2].Depth)
}

func TestBuildMissingParentGetsPlaceholder(t *testing.T) {
	root := Build([]*models.Annotation{ann("reply", 0, "gone")}, Options{})

	require.Equal(t, []string{"gone"}, TopLevelIDs(root))
	placeholder := root.Children[0]
	require.Nil(t, placeholder.Annotation)
	require.Len(t, placeholder.Children, 1)
	require.Equal(t, "reply", placeholder.Children[0].ID)
	require.Equal(t, 1, placeholder.ReplyCount)
}

func TestBuildPlaceholderChainFollowsReferences(t *testing.T) {
	root := Build([]*models.Annotation{ann("leaf", 0, "top", "mid")}, Options{})

	require.Equal(t, []string{"top"}, TopLevelIDs(root))
	mid := Find(root, "mid")
	require.NotNil(t, mid)
	require.Equal(t, "top", mid.Parent.ID)
	require.Equal(t, "top", TopLevelFor(root, "leaf").ID)
}

func TestBuildCycleBreaksDeterministically(t *testing.T) {
	root := Build([]*models.Annotation{
		ann("a", 0, "b"),
		ann("b", time.Second, "a"),
	}, Options{})

	// Linking is chronological: a links under b, then b's link back is dropped.
	require.Equal(t, []string{"b"}, TopLevelIDs(root))
	require.Equal(t, "a", root.Children[0].Children[0].ID)
}

func TestBuildSelfReferenceIgnored(t *testing.T) {
	root := Build([]*models.Annotation{ann("a", 0, "a")}, Options{})
	require.Equal(t, []string{"a"}, TopLevelIDs(root))
}

func TestBuildUsesTagForUnsavedAnnotations(t *testing.T) {
	draft := ann("", 0)
	draft.Tag = "t-local"
	root := Build([]*models.Annotation{draft, ann("", time.Second)}, Options{})
	require.Equal(t, []string{"t-local"}, TopLevelIDs(root))
}

func TestBuildDropsHiddenLeaves(t *testing.T) {
	hiddenLeaf := ann("h", 0)
	hiddenLeaf.Hidden = true
	hiddenParent := ann("p", time.Second)
	hiddenParent.Hidden = true

	root := Build([]*models.Annotation{
		hiddenLeaf,
		hiddenParent,
		ann("r", 2*time.Second, "p"),
	}, Options{})

	require.Equal(t, []string{"p"}, TopLevelIDs(root))
}

func TestBuildSortOrders(t *testing.T) {
	anns := []*models.Annotation{
		anchoredAt(ann("late-top", 3*time.Second), 10),
		anchoredAt(ann("early-bottom", 0), 500),
		ann("page-note", time.Second),
	}

	require.Equal(t, []string{"late-top", "early-bottom", "page-note"}, TopLevelIDs(Build(anns, Options{Sort: SortLocation})))
	require.Equal(t, []string{"late-top", "page-note", "early-bottom"}, TopLevelIDs(Build(anns, Options{Sort: SortNewest})))
	require.Equal(t, []string{"early-bottom", "page-note", "late-top"}, TopLevelIDs(Build(anns, Options{Sort: SortOldest})))
}

func TestBuildRepliesAlwaysOldestFirst(t *testing.T) {
	root := Build([]*models.Annotation{
		ann("a", 0),
		ann("second", 2*time.Second, "a"),
		ann("first", time.Second, "a"),
	}, Options{Sort: SortNewest})

	children := root.Children[0].Children
	require.Equal(t, "first", children[0].ID)
	require.Equal(t, "second", children[1].ID)
}

func TestBuildFilterKeepsMatchingSubtrees(t *testing.T) {
	reply := ann("b", time.Second, "a")
	reply.Text = "needle"
	root := Build([]*models.Annotation{ann("a", 0), reply, ann("c", 2*time.Second)}, Options{
		Filter: func(a *models.Annotation) bool { return strings.Contains(a.Text, "needle") },
	})
	require.Equal(t, []string{"a"}, TopLevelIDs(root))
}

func TestSortKeyCycle(t *testing.T) {
	require.Equal(t, SortNewest, SortLocation.Next())
	require.Equal(t, SortOldest, SortNewest.Next())
	require.Equal(t, SortLocation, SortOldest.Next())
	require.Equal(t, SortLocation, ParseSortKey("bogus"))
	require.Equal(t, SortNewest, ParseSortKey(" Newest "))
}

func TestCountAnnotationsSkipsPlaceholders(t *testing.T) {
	root := Build([]*models.Annotation{ann("x", 0, "missing"), ann("y", time.Second)}, Options{})
	require.Equal(t, 2, CountAnnotations(root))
	require.Nil(t, TopLevelFor(root, "nope"))
}
