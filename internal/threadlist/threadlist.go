// Package threadlist drives a windowed list of annotation threads: it keeps
// the height cache current, recomputes the rendered window on scroll,
// resize, and structural change, and reacts to new annotations.
package threadlist

import (
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/margin/internal/debounce"
	"github.com/tOgg1/margin/internal/events"
	"github.com/tOgg1/margin/internal/logging"
	"github.com/tOgg1/margin/internal/models"
	"github.com/tOgg1/margin/internal/threading"
	"github.com/tOgg1/margin/internal/windowing"
)

// DefaultScrollRoot names the scroll container when none is configured.
const DefaultScrollRoot = "js-thread-list-scroll-root"

// ScrollContainer is the scrollable region hosting the list.
type ScrollContainer interface {
	ScrollTop() int
	SetScrollTop(top int)
	Height() int
}

// Element is the rendered form of one thread.
type Element interface {
	// HeightWithMargins is the rendered height including vertical margins.
	HeightWithMargins() int
}

// Host is the rendering layer the list is mounted in.
type Host interface {
	// ScrollContainer locates the scroll container. It may be absent.
	ScrollContainer() (ScrollContainer, bool)

	// Element returns the rendered element for a thread, if one exists.
	Element(threadID string) (Element, bool)
}

// SelectionStore owns the annotation selection.
type SelectionStore interface {
	ClearSelection()
}

// Options configures a ThreadList.
type Options struct {
	// DefaultHeight is used for threads that were never measured.
	DefaultHeight int

	// Window holds the overscan margins.
	Window windowing.Options

	// Debounce is the quiet period before a scroll or resize recompute.
	Debounce time.Duration

	// ScrollRoot names the scroll container in logs.
	ScrollRoot string
}

// DefaultOptions returns pixel-sized defaults.
func DefaultOptions() Options {
	return Options{
		DefaultHeight: windowing.DefaultThreadHeight,
		Window:        windowing.DefaultOptions(),
		Debounce:      debounce.DefaultInterval,
		ScrollRoot:    DefaultScrollRoot,
	}
}

// Stats counts work done by the list.
type Stats struct {
	Recomputes   int
	Measurements int
}

// ThreadList is safe for concurrent use; debounced recomputes run on a timer
// goroutine and take the same lock as every other operation.
type ThreadList struct {
	host      Host
	selection SelectionStore
	pub       events.Publisher
	opts      Options
	logger    zerolog.Logger

	debouncer *debounce.Debouncer

	mu            sync.Mutex
	heights       *windowing.HeightCache
	root          *threading.Thread
	topLevelIDs   []string
	window        windowing.Window
	pendingScroll string
	onChange      func(windowing.Window)
	unsubscribe   func()
	closed        bool
	stats         Stats
}

// New creates a list mounted in host. selection and pub may be nil.
func New(host Host, selection SelectionStore, pub events.Publisher, opts Options) *ThreadList {
	if opts.ScrollRoot == "" {
		opts.ScrollRoot = DefaultScrollRoot
	}
	return &ThreadList{
		host:      host,
		selection: selection,
		pub:       pub,
		opts:      opts,
		logger:    logging.Component("threadlist").With().Str("scroll_root", opts.ScrollRoot).Logger(),
		debouncer: debounce.New(opts.Debounce),
		heights:   windowing.NewHeightCache(opts.DefaultHeight),
	}
}

// Attach subscribes to new-annotation notifications on the event bus.
func (l *ThreadList) Attach() error {
	if l.pub == nil {
		return nil
	}
	unsubscribe, err := events.Scoped(l.pub, events.Filter{
		EventTypes: []models.EventType{models.EventTypeBeforeAnnotationCreated},
	}, func(event *models.Event) {
		l.HandleBeforeAnnotationCreated(event.Annotation)
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		unsubscribe()
		return nil
	}
	l.unsubscribe = unsubscribe
	return nil
}

// Close unsubscribes and cancels any pending recompute. Later calls are
// ignored.
func (l *ThreadList) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	unsubscribe := l.unsubscribe
	l.unsubscribe = nil
	l.mu.Unlock()

	l.debouncer.Cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// OnChange registers fn to receive every new window. fn runs without the
// list's lock held and may run on the timer goroutine.
func (l *ThreadList) OnChange(fn func(windowing.Window)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// Window returns the most recent window.
func (l *ThreadList) Window() windowing.Window {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.window
}

// Stats returns work counters.
func (l *ThreadList) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Height returns the cached or default height of a thread.
func (l *ThreadList) Height(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.heights.Get(id)
}

// TopLevel returns the current top-level threads.
func (l *ThreadList) TopLevel() []*threading.Thread {
	l.mu.Lock()
	defer l.mu.Unlock()
	return threading.TopLevel(l.root)
}

// OffsetOf returns the distance from the top of the list to a top-level
// thread.
func (l *ThreadList) OffsetOf(id string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return windowing.OffsetOf(threading.TopLevel(l.root), l.heights, id)
}

// TotalHeight returns the height of the whole list.
func (l *ThreadList) TotalHeight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return windowing.TotalHeight(threading.TopLevel(l.root), l.heights)
}

// HandleScroll schedules a recompute once scrolling settles.
func (l *ThreadList) HandleScroll() {
	l.schedule()
}

// HandleResize schedules a recompute once resizing settles.
func (l *ThreadList) HandleResize() {
	l.schedule()
}

func (l *ThreadList) schedule() {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return
	}
	l.debouncer.Trigger(l.recomputeNow)
}

// Flush runs a pending debounced recompute immediately.
func (l *ThreadList) Flush() {
	if !l.debouncer.Pending() {
		return
	}
	l.debouncer.Cancel()
	l.recomputeNow()
}

func (l *ThreadList) recomputeNow() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	notify := l.recomputeLocked()
	l.mu.Unlock()
	notify()
}

// SetThread replaces the thread tree. When the sequence of top-level
// threads changed, every top-level thread with an element is re-measured
// before the window is recomputed.
func (l *ThreadList) SetThread(root *threading.Thread) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}

	ids := threading.TopLevelIDs(root)
	structural := !slices.Equal(ids, l.topLevelIDs)
	l.root = root
	l.topLevelIDs = ids

	if structural {
		l.measureLocked(threading.TopLevel(root))
	}
	notify := l.recomputeLocked()
	if structural && l.pendingScroll != "" {
		target := l.pendingScroll
		l.pendingScroll = ""
		if l.scrollToLocked(target) {
			notify = l.recomputeLocked()
		}
	}
	l.mu.Unlock()
	notify()
}

// Remeasure measures the rendered top-level threads after the host redrew
// them and recomputes when any height changed.
func (l *ThreadList) Remeasure() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	if !l.measureLocked(l.window.Threads) {
		l.mu.Unlock()
		return
	}
	notify := l.recomputeLocked()
	l.mu.Unlock()
	notify()
}

// HandleBeforeAnnotationCreated reacts to an annotation about to be created.
// Unless it is a reply or a highlight the selection is cleared. If its thread
// is rendered the container scrolls to it; otherwise the scroll is retried
// once on the next structural change.
func (l *ThreadList) HandleBeforeAnnotationCreated(ann *models.Annotation) {
	if ann == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}

	if l.selection != nil && !models.IsReply(ann) && !models.IsHighlight(ann) {
		l.selection.ClearSelection()
	}

	notify := func() {}
	key := ann.Key()
	if key != "" {
		if l.scrollToLocked(key) {
			notify = l.recomputeLocked()
		} else {
			l.pendingScroll = key
		}
	}
	l.mu.Unlock()
	notify()
}

// ScrollIntoView scrolls the container to a rendered top-level thread.
func (l *ThreadList) ScrollIntoView(id string) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	if !l.scrollToLocked(id) {
		l.mu.Unlock()
		return false
	}
	notify := l.recomputeLocked()
	l.mu.Unlock()
	notify()
	return true
}

// scrollToLocked sets the container's scroll position to the offset of a
// rendered top-level thread.
func (l *ThreadList) scrollToLocked(id string) bool {
	threads := threading.TopLevel(l.root)
	offset, ok := windowing.OffsetOf(threads, l.heights, id)
	if !ok {
		return false
	}
	if _, rendered := l.host.Element(id); !rendered {
		return false
	}
	container, ok := l.host.ScrollContainer()
	if !ok {
		l.logger.Debug().Str("thread", id).Msg("scroll container missing")
		return false
	}
	container.SetScrollTop(offset)
	return true
}

// measureLocked records the height of each thread that has an element and
// reports whether any cached height changed.
func (l *ThreadList) measureLocked(threads []*threading.Thread) bool {
	changed := false
	for _, thread := range threads {
		if thread == nil {
			continue
		}
		el, ok := l.host.Element(thread.ID)
		if !ok || el == nil {
			continue
		}
		height := el.HeightWithMargins()
		l.stats.Measurements++
		if prev, ok := l.heights.Lookup(thread.ID); ok && prev == height {
			continue
		}
		l.heights.Set(thread.ID, height)
		changed = true
	}
	return changed
}

// recomputeLocked computes a new window and returns the change notification
// to run once the lock is released.
func (l *ThreadList) recomputeLocked() func() {
	scrollTop, viewport := 0, 0
	if container, ok := l.host.ScrollContainer(); ok {
		scrollTop = container.ScrollTop()
		viewport = container.Height()
	}

	l.window = windowing.Calculate(threading.TopLevel(l.root), l.heights, scrollTop, viewport, l.opts.Window)
	l.stats.Recomputes++

	l.logger.Trace().
		Int("scroll_top", scrollTop).
		Int("viewport", viewport).
		Int("visible", len(l.window.Threads)).
		Int("upper", l.window.OffscreenUpperHeight).
		Int("lower", l.window.OffscreenLowerHeight).
		Msg("window recomputed")

	fn := l.onChange
	window := l.window
	if fn == nil {
		return func() {}
	}
	return func() { fn(window) }
}
