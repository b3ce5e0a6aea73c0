// Package windowing decides which top-level threads of a scrollable list are
// rendered and how much blank space stands in for the rest.
package windowing

import (
	"github.com/tOgg1/margin/internal/threading"
)

// Defaults are in the host's length unit. They match a pixel-based host; a
// terminal host configures row-sized values.
const (
	DefaultThreadHeight = 200
	DefaultMarginAbove  = 800
	DefaultMarginBelow  = 800
)

// Options tunes the window computation.
type Options struct {
	// MarginAbove and MarginBelow extend the rendered region beyond the
	// viewport so fast scrolling does not expose unrendered space.
	MarginAbove int
	MarginBelow int
}

// DefaultOptions returns the stock overscan margins.
func DefaultOptions() Options {
	return Options{MarginAbove: DefaultMarginAbove, MarginBelow: DefaultMarginBelow}
}

// Window is an immutable snapshot of the rendered slice of a thread list.
type Window struct {
	// Threads is the contiguous slice of rendered top-level threads.
	Threads []*threading.Thread

	// First and Last bound Threads within the input: [First, Last).
	First int
	Last  int

	OffscreenUpperHeight int
	OffscreenLowerHeight int

	// TotalHeight is the summed height of every thread in the input.
	TotalHeight int
}

// VisibleHeight returns the summed height of the rendered threads.
func (w Window) VisibleHeight() int {
	return w.TotalHeight - w.OffscreenUpperHeight - w.OffscreenLowerHeight
}

// Contains reports whether the thread with id is rendered.
func (w Window) Contains(id string) bool {
	for _, t := range w.Threads {
		if t != nil && t.ID == id {
			return true
		}
	}
	return false
}

// Calculate walks threads in order and splits them into the threads above
// the overscanned viewport, the rendered threads, and the threads below it.
// Nil threads are skipped.
func Calculate(threads []*threading.Thread, heights *HeightCache, scrollTop, viewportHeight int, opts Options) Window {
	if scrollTop < 0 {
		scrollTop = 0
	}
	if viewportHeight < 0 {
		viewportHeight = 0
	}
	visibleTop := scrollTop - max(0, opts.MarginAbove)
	visibleBottom := scrollTop + viewportHeight + max(0, opts.MarginBelow)

	w := Window{First: -1}
	pos := 0
	for i, thread := range threads {
		if thread == nil {
			continue
		}
		h := heights.Get(thread.ID)
		switch {
		case pos+h < visibleTop:
			w.OffscreenUpperHeight += h
		case pos < visibleBottom:
			if w.First < 0 {
				w.First = i
			}
			w.Last = i + 1
			w.Threads = append(w.Threads, thread)
		default:
			w.OffscreenLowerHeight += h
		}
		pos += h
	}
	w.TotalHeight = pos

	if w.First < 0 {
		// Nothing rendered: the split point sits after the upper spacer.
		w.First = upperCount(threads, heights, visibleTop)
		w.Last = w.First
	}
	return w
}

func upperCount(threads []*threading.Thread, heights *HeightCache, visibleTop int) int {
	pos := 0
	for i, thread := range threads {
		if thread == nil {
			continue
		}
		h := heights.Get(thread.ID)
		if pos+h >= visibleTop {
			return i
		}
		pos += h
	}
	return len(threads)
}

// OffsetOf returns the distance from the top of the list to the thread with
// id, summing the heights of the threads before it.
func OffsetOf(threads []*threading.Thread, heights *HeightCache, id string) (int, bool) {
	offset := 0
	for _, thread := range threads {
		if thread == nil {
			continue
		}
		if thread.ID == id {
			return offset, true
		}
		offset += heights.Get(thread.ID)
	}
	return 0, false
}

// TotalHeight sums the heights of threads.
func TotalHeight(threads []*threading.Thread, heights *HeightCache) int {
	total := 0
	for _, thread := range threads {
		if thread == nil {
			continue
		}
		total += heights.Get(thread.ID)
	}
	return total
}
