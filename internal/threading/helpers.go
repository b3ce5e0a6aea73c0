package threading

// Flatten returns t and its descendants in display order (depth-first).
func Flatten(t *Thread) []*Thread {
	if t == nil {
		return nil
	}
	out := make([]*Thread, 0, 1+t.ReplyCount)
	var walk func(n *Thread)
	walk = func(n *Thread) {
		out = append(out, n)
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(t)
	return out
}

// Find returns the thread with the given id in the subtree of t.
func Find(t *Thread, id string) *Thread {
	if t == nil || id == "" {
		return nil
	}
	if t.ID == id {
		return t
	}
	for _, child := range t.Children {
		if found := Find(child, id); found != nil {
			return found
		}
	}
	return nil
}

// TopLevel returns the children of root, or nil for a nil root.
func TopLevel(root *Thread) []*Thread {
	if root == nil {
		return nil
	}
	return root.Children
}

// TopLevelIDs returns the ids of the children of root, in order.
func TopLevelIDs(root *Thread) []string {
	children := TopLevel(root)
	ids := make([]string, 0, len(children))
	for _, child := range children {
		if child == nil {
			continue
		}
		ids = append(ids, child.ID)
	}
	return ids
}

// TopLevelFor returns the top-level ancestor of the thread with the given id.
func TopLevelFor(root *Thread, id string) *Thread {
	found := Find(root, id)
	if found == nil || found == root {
		return nil
	}
	for found.Parent != nil && found.Parent != root {
		found = found.Parent
	}
	return found
}

// CountAnnotations returns the number of annotations in the tree below root.
func CountAnnotations(root *Thread) int {
	total := 0
	for _, t := range Flatten(root) {
		if t.Annotation != nil {
			total++
		}
	}
	return total
}
