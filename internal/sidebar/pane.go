package sidebar

import (
	"sync"

	"github.com/tOgg1/margin/internal/threadlist"
)

// cardMargin is the blank row left under every card.
const cardMargin = 1

// renderedCard is the laid-out form of one top-level thread.
type renderedCard struct {
	id    string
	lines []string
}

// HeightWithMargins implements threadlist.Element.
func (c *renderedCard) HeightWithMargins() int {
	return len(c.lines) + cardMargin
}

// pane is the scrollable thread list region. It is both the scroll container
// and the set of rendered cards the thread list measures. The thread list
// reads it from its debounce goroutine, so every field is guarded.
type pane struct {
	mu     sync.Mutex
	top    int
	height int
	cards  map[string]*renderedCard
}

func newPane() *pane {
	return &pane{cards: make(map[string]*renderedCard)}
}

// ScrollContainer implements threadlist.Host. The container is absent until
// the terminal size is known.
func (p *pane) ScrollContainer() (threadlist.ScrollContainer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.height <= 0 {
		return nil, false
	}
	return p, true
}

// Element implements threadlist.Host.
func (p *pane) Element(threadID string) (threadlist.Element, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	card, ok := p.cards[threadID]
	if !ok {
		return nil, false
	}
	return card, true
}

// ScrollTop implements threadlist.ScrollContainer.
func (p *pane) ScrollTop() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.top
}

// SetScrollTop implements threadlist.ScrollContainer.
func (p *pane) SetScrollTop(top int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.top = max(0, top)
}

// Height implements threadlist.ScrollContainer.
func (p *pane) Height() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.height
}

func (p *pane) setHeight(height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.height = max(0, height)
}

// scrollTo moves the viewport, keeping it within [0, total-height].
func (p *pane) scrollTo(top, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	maxTop := max(0, total-p.height)
	p.top = min(max(0, top), maxTop)
}

// setCards replaces the rendered set.
func (p *pane) setCards(cards []*renderedCard) {
	next := make(map[string]*renderedCard, len(cards))
	for _, card := range cards {
		next[card.id] = card
	}
	p.mu.Lock()
	p.cards = next
	p.mu.Unlock()
}

// card returns the rendered card for a thread.
func (p *pane) card(id string) (*renderedCard, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	card, ok := p.cards[id]
	return card, ok
}
