// Package threading arranges flat annotations into reply trees.
package threading

import (
	"sort"
	"strings"
	"time"

	"github.com/tOgg1/margin/internal/models"
)

// RootID identifies the virtual root returned by Build.
const RootID = "root"

const maxDisplayDepth = 10

// SortKey orders top-level threads.
type SortKey string

const (
	SortNewest   SortKey = "newest"
	SortOldest   SortKey = "oldest"
	SortLocation SortKey = "location"
)

// SortKeys lists the supported orderings in cycle order.
var SortKeys = []SortKey{SortLocation, SortNewest, SortOldest}

// ParseSortKey returns the matching key, defaulting to location order.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortNewest:
		return SortNewest
	case SortOldest:
		return SortOldest
	default:
		return SortLocation
	}
}

// Next returns the key after k in SortKeys.
func (k SortKey) Next() SortKey {
	for i, key := range SortKeys {
		if key == k {
			return SortKeys[(i+1)%len(SortKeys)]
		}
	}
	return SortKeys[0]
}

// Thread is a node in the reply tree. The root returned by Build and
// placeholders for missing parents have no annotation.
type Thread struct {
	ID         string
	Annotation *models.Annotation
	Parent     *Thread
	Children   []*Thread
	Depth      int // nesting level (0 = top-level thread, clamped)
	ReplyCount int // all descendants with an annotation
}

// Options controls how Build arranges threads.
type Options struct {
	Sort SortKey

	// Filter keeps top-level threads with at least one matching annotation
	// anywhere in the subtree. Nil keeps everything.
	Filter func(*models.Annotation) bool
}

// Build takes a flat list of annotations and returns a virtual root whose
// children are the top-level threads.
func Build(annotations []*models.Annotation, opts Options) *Thread {
	root := &Thread{ID: RootID, Depth: -1}
	nodes := indexNodes(annotations)

	ordered := make([]*Thread, 0, len(nodes))
	for _, node := range nodes {
		ordered = append(ordered, node)
	}
	// Deterministic: link in chronological order.
	sort.SliceStable(ordered, func(i, j int) bool {
		return annotationLess(ordered[i].Annotation, ordered[j].Annotation)
	})

	for _, node := range ordered {
		link(root, nodes, node, node.Annotation.References)
	}

	pruneHidden(root)
	if opts.Filter != nil {
		kept := root.Children[:0]
		for _, child := range root.Children {
			if subtreeMatches(child, opts.Filter) {
				kept = append(kept, child)
			}
		}
		root.Children = kept
	}

	sortTopLevel(root.Children, opts.Sort)
	for _, child := range root.Children {
		finalize(child, 0)
	}
	return root
}

func indexNodes(annotations []*models.Annotation) map[string]*Thread {
	nodes := make(map[string]*Thread, len(annotations))
	for _, ann := range annotations {
		key := ann.Key()
		if key == "" {
			continue
		}
		if prev, ok := nodes[key]; ok && prev.Annotation.Updated.After(ann.Updated) {
			continue
		}
		nodes[key] = &Thread{ID: key, Annotation: ann}
	}
	return nodes
}

// link attaches node under the last reference, creating placeholders for
// ancestors that are not loaded.
func link(root *Thread, nodes map[string]*Thread, node *Thread, refs []string) {
	refs = trimReferences(refs, node.ID)
	if len(refs) == 0 {
		attach(root, node)
		return
	}

	parentID := refs[len(refs)-1]
	parent := nodes[parentID]
	if parent == nil {
		parent = &Thread{ID: parentID}
		nodes[parentID] = parent
		link(root, nodes, parent, refs[:len(refs)-1])
	}
	if wouldCreateCycle(node, parent) {
		attach(root, node)
		return
	}
	attach(parent, node)
}

func trimReferences(refs []string, self string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" || ref == self {
			continue
		}
		out = append(out, ref)
	}
	return out
}

func attach(parent, child *Thread) {
	if child.Parent != nil {
		return
	}
	child.Parent = parent
	parent.Children = append(parent.Children, child)
}

func wouldCreateCycle(node, parent *Thread) bool {
	for cur := parent; cur != nil; cur = cur.Parent {
		if cur == node {
			return true
		}
	}
	return false
}

// pruneHidden drops hidden annotations and placeholders that have no
// remaining replies.
func pruneHidden(t *Thread) bool {
	kept := t.Children[:0]
	for _, child := range t.Children {
		if pruneHidden(child) {
			kept = append(kept, child)
		}
	}
	t.Children = kept
	if t.Parent == nil {
		return true
	}
	if len(t.Children) > 0 {
		return true
	}
	return t.Annotation != nil && !t.Annotation.Hidden
}

func subtreeMatches(t *Thread, match func(*models.Annotation) bool) bool {
	if t.Annotation != nil && match(t.Annotation) {
		return true
	}
	for _, child := range t.Children {
		if subtreeMatches(child, match) {
			return true
		}
	}
	return false
}

func finalize(t *Thread, depth int) int {
	if depth > maxDisplayDepth {
		depth = maxDisplayDepth
	}
	t.Depth = depth
	sort.SliceStable(t.Children, func(i, j int) bool {
		return annotationLess(t.Children[i].Annotation, t.Children[j].Annotation)
	})
	count := 0
	for _, child := range t.Children {
		count += finalize(child, depth+1)
		if child.Annotation != nil {
			count++
		}
	}
	t.ReplyCount = count
	return count
}

func sortTopLevel(threads []*Thread, key SortKey) {
	switch key {
	case SortNewest:
		sort.SliceStable(threads, func(i, j int) bool {
			return created(threads[j].Annotation).Before(created(threads[i].Annotation))
		})
	case SortOldest:
		sort.SliceStable(threads, func(i, j int) bool {
			return annotationLess(threads[i].Annotation, threads[j].Annotation)
		})
	default:
		sort.SliceStable(threads, func(i, j int) bool {
			li, lj := models.Location(threads[i].Annotation), models.Location(threads[j].Annotation)
			switch {
			case li < 0 && lj < 0:
				return annotationLess(threads[i].Annotation, threads[j].Annotation)
			case li < 0:
				return false
			case lj < 0:
				return true
			case li != lj:
				return li < lj
			}
			return annotationLess(threads[i].Annotation, threads[j].Annotation)
		})
	}
}

func created(a *models.Annotation) time.Time {
	if a == nil {
		return time.Time{}
	}
	return a.Created
}

func annotationLess(a, b *models.Annotation) bool {
	if a == nil || b == nil {
		return a != nil
	}
	if !a.Created.IsZero() && !b.Created.IsZero() && !a.Created.Equal(b.Created) {
		return a.Created.Before(b.Created)
	}
	return a.Key() < b.Key()
}
