// Package sidebar is the terminal sidebar: a windowed list of annotation
// threads for one document, with compose, filter and sort.
package sidebar

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/tOgg1/margin/internal/config"
	"github.com/tOgg1/margin/internal/events"
	"github.com/tOgg1/margin/internal/logging"
	"github.com/tOgg1/margin/internal/models"
	"github.com/tOgg1/margin/internal/sidebar/styles"
	"github.com/tOgg1/margin/internal/source"
	"github.com/tOgg1/margin/internal/store"
	"github.com/tOgg1/margin/internal/threading"
	"github.com/tOgg1/margin/internal/threadlist"
	"github.com/tOgg1/margin/internal/watcher"
	"github.com/tOgg1/margin/internal/windowing"
)

const (
	defaultRefreshInterval = 2 * time.Second
	loadTimeout            = 10 * time.Second

	// maxLayoutPasses bounds render/measure rounds after one change.
	maxLayoutPasses = 4

	wheelStep = 3
)

// Config configures the sidebar program.
type Config struct {
	// URI is the annotated document.
	URI string

	// Title is shown in the header instead of the URI when set.
	Title string

	// Service loads and stores annotations.
	Service *source.Service

	// Publisher is the event bus the service publishes on.
	Publisher events.Publisher

	// Prefs persists sort, theme and unsent drafts. May be nil.
	Prefs *store.Prefs

	// WatchPath is a file to watch for external changes. Without it the
	// source is polled every RefreshInterval.
	WatchPath string

	// User authors new annotations.
	User string

	Theme           string
	RefreshInterval time.Duration
	Sidebar         config.SidebarConfig
}

// Model is the bubbletea model for the sidebar.
type Model struct {
	uri             string
	title           string
	user            string
	service         *source.Service
	prefs           *store.Prefs
	state           *store.Store
	list            *threadlist.ThreadList
	pane            *pane
	watcher         *watcher.Watcher
	theme           styles.Theme
	cardStyles      styles.CardStyles
	refreshInterval time.Duration
	collapsedLines  int
	logger          zerolog.Logger

	windowCh         chan struct{}
	dirty            atomic.Bool
	unsubscribeStore func()

	width    int
	height   int
	showHelp bool
	now      time.Time
	loaded   bool

	annotations []*models.Annotation
	drafts      []*models.Annotation
	root        *threading.Thread
	matches     map[string]struct{}

	// window and cards are the last laid-out window and its rendered cards.
	window windowing.Window
	cards  []*renderedCard

	compose *composeState
	filter  *filterState
	status  string
	lastErr error
}

type annotationsLoadedMsg struct {
	now         time.Time
	annotations []*models.Annotation
	err         error
}

type refreshTickMsg struct{}

type fileChangedMsg struct{}

type windowChangedMsg struct{}

type composeSavedMsg struct {
	ann *models.Annotation
	err error
}

type highlightSavedMsg struct {
	ann *models.Annotation
	err error
}

// NewModel builds the sidebar. The caller owns cfg.Service and cfg.Prefs;
// Close releases only what the model created.
func NewModel(cfg Config) (*Model, error) {
	normalized, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	m := &Model{
		uri:             normalized.URI,
		title:           normalized.Title,
		user:            normalized.User,
		service:         normalized.Service,
		prefs:           normalized.Prefs,
		pane:            newPane(),
		theme:           styles.Lookup(normalized.Theme),
		refreshInterval: normalized.RefreshInterval,
		collapsedLines:  normalized.Sidebar.CollapsedBodyLines,
		logger:          logging.WithURI(normalized.URI).With().Str("component", "sidebar").Logger(),
		windowCh:        make(chan struct{}, 1),
		now:             time.Now().UTC(),
	}
	m.cardStyles = styles.NewCardStyles(m.theme, nil)

	sortKey := threading.ParseSortKey(normalized.Sidebar.SortBy)
	if m.prefs != nil {
		if saved := m.prefs.Snapshot().Sort; saved != "" {
			sortKey = threading.ParseSortKey(saved)
		}
		m.prefs.SetLastURI(m.uri)
	}
	m.state = store.New(sortKey)
	m.unsubscribeStore = m.state.Subscribe(func() { m.dirty.Store(true) })

	m.list = threadlist.New(m.pane, m.state, normalized.Publisher, threadlist.Options{
		DefaultHeight: normalized.Sidebar.DefaultHeight,
		Window: windowing.Options{
			MarginAbove: normalized.Sidebar.MarginAbove,
			MarginBelow: normalized.Sidebar.MarginBelow,
		},
		Debounce:   normalized.Sidebar.DebounceInterval,
		ScrollRoot: normalized.Sidebar.ScrollRoot,
	})
	m.list.OnChange(func(windowing.Window) {
		select {
		case m.windowCh <- struct{}{}:
		default:
		}
	})
	if err := m.list.Attach(); err != nil {
		m.list.Close()
		return nil, fmt.Errorf("attach thread list: %w", err)
	}

	if normalized.WatchPath != "" {
		w, err := watcher.New(normalized.WatchPath, watcher.WithOnError(func(err error) {
			m.logger.Warn().Err(err).Msg("watch failed")
		}))
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			// Non-fatal: fall back to polling the source.
			m.logger.Warn().Err(err).Str("path", normalized.WatchPath).Msg("file watcher unavailable")
		} else {
			m.watcher = w
		}
	}
	return m, nil
}

// Run starts the program and blocks until it exits.
func Run(cfg Config) error {
	model, err := NewModel(cfg)
	if err != nil {
		return err
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = program.Run()
	return err
}

// Close stops background work.
func (m *Model) Close() error {
	if m == nil {
		return nil
	}
	m.list.Close()
	if m.unsubscribeStore != nil {
		m.unsubscribeStore()
	}
	if m.watcher != nil {
		m.watcher.Stop()
	}
	return nil
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.waitForWindowCmd(), m.refreshCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.update(msg)
	if m.dirty.Swap(false) {
		m.rebuild()
	}
	return m, cmd
}

func (m *Model) update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resize()
		return nil
	case annotationsLoadedMsg:
		m.applyLoaded(typed)
		return nil
	case refreshTickMsg, fileChangedMsg:
		return tea.Batch(m.loadCmd(), m.refreshCmd())
	case windowChangedMsg:
		m.relayout()
		return m.waitForWindowCmd()
	case composeSavedMsg:
		return m.applyComposeSaved(typed)
	case highlightSavedMsg:
		if typed.err != nil {
			m.status = "highlight failed: " + typed.err.Error()
			return nil
		}
		m.status = "highlight saved"
		return m.loadCmd()
	case tea.MouseMsg:
		return m.handleMouse(typed)
	case tea.KeyMsg:
		return m.handleKey(typed)
	}

	if m.compose != nil {
		_, cmd := m.compose.update(msg)
		return cmd
	}
	if m.filter != nil {
		_, cmd := m.filter.update(msg)
		return cmd
	}
	return nil
}

func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}

	sections := []string{m.renderHeader()}
	sections = append(sections, m.renderBody(m.bodyHeight()))
	if m.compose != nil {
		sections = append(sections, m.compose.view(m.theme, m.width))
	}
	sections = append(sections, m.renderFooter())
	return m.theme.BaseStyle().Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// bodyHeight is the number of rows left for the thread list.
func (m *Model) bodyHeight() int {
	rows := m.height - headerRows - footerRows
	if m.compose != nil {
		rows -= m.compose.height()
	}
	return max(1, rows)
}

// resize applies a new terminal size to the pane and re-lays out the cards
// at the new width.
func (m *Model) resize() {
	m.pane.setHeight(m.bodyHeight())
	if m.compose != nil {
		m.compose.setWidth(m.width)
	}
	m.relayout()
	m.list.HandleResize()
}

func (m *Model) loadCmd() tea.Cmd {
	service := m.service
	uri := m.uri
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		annotations, err := service.Load(ctx, uri)
		return annotationsLoadedMsg{now: time.Now().UTC(), annotations: annotations, err: err}
	}
}

func (m *Model) refreshCmd() tea.Cmd {
	if m.watcher != nil {
		changed := m.watcher.Changed()
		return func() tea.Msg {
			<-changed
			return fileChangedMsg{}
		}
	}
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

// waitForWindowCmd delivers window changes made on the debounce goroutine
// back into the program.
func (m *Model) waitForWindowCmd() tea.Cmd {
	ch := m.windowCh
	return func() tea.Msg {
		<-ch
		return windowChangedMsg{}
	}
}

func (m *Model) applyLoaded(msg annotationsLoadedMsg) {
	m.now = msg.now
	m.lastErr = msg.err
	if msg.err != nil {
		m.logger.Warn().Err(msg.err).Msg("load annotations failed")
		return
	}
	m.loaded = true
	m.annotations = msg.annotations
	m.rebuild()
}

// rebuild re-threads annotations and drafts and hands the tree to the list.
func (m *Model) rebuild() {
	all := make([]*models.Annotation, 0, len(m.annotations)+len(m.drafts))
	all = append(all, m.annotations...)
	all = append(all, m.drafts...)

	m.matches = fuzzyMatches(m.state.Filter(), all)
	m.root = threading.Build(all, threading.Options{
		Sort:   m.state.Sort(),
		Filter: m.threadFilter(),
	})
	m.list.SetThread(m.root)
	m.ensureFocus()
	m.relayout()
}

// threadFilter keeps drafts, selected threads while a selection exists, and
// query matches while a filter is set.
func (m *Model) threadFilter() func(*models.Annotation) bool {
	query := m.state.Filter() != ""
	selection := m.state.HasSelection()
	if !query && !selection {
		return nil
	}
	return func(ann *models.Annotation) bool {
		if m.isDraft(ann) {
			return true
		}
		key := ann.Key()
		if selection && !m.state.IsSelected(key) {
			return false
		}
		if query {
			_, ok := m.matches[key]
			return ok
		}
		return true
	}
}

// relayout renders the current window, lets the list measure it, and
// repeats while measurement moves the window.
func (m *Model) relayout() {
	for range maxLayoutPasses {
		m.renderWindow()
		before := m.list.Stats().Recomputes
		m.list.Remeasure()
		if m.list.Stats().Recomputes == before {
			break
		}
	}
	m.clampScroll()
}

func (m *Model) renderWindow() {
	window := m.list.Window()
	cards := make([]*renderedCard, 0, len(window.Threads))
	for _, thread := range window.Threads {
		cards = append(cards, renderThreadCard(thread, m.cardOptions(thread)))
	}
	m.pane.setCards(cards)
	m.window = window
	m.cards = cards
}

func (m *Model) cardOptions(thread *threading.Thread) cardOptions {
	return cardOptions{
		width:          m.width - 1,
		now:            m.now,
		styles:         m.cardStyles,
		collapsedLines: m.collapsedLines,
		expanded:       m.state.IsExpanded(thread.ID),
		focused:        m.state.Focused() == thread.ID,
		selected:       m.state.IsSelected(thread.ID),
		isDraft:        m.isDraft,
	}
}

// clampScroll keeps the viewport inside the list after it shrank.
func (m *Model) clampScroll() {
	before := m.pane.ScrollTop()
	m.pane.scrollTo(before, m.list.TotalHeight())
	if m.pane.ScrollTop() != before {
		m.list.HandleScroll()
	}
}

func (m *Model) isDraft(ann *models.Annotation) bool {
	for _, draft := range m.drafts {
		if draft == ann {
			return true
		}
	}
	return false
}

func (c Config) normalize() (Config, error) {
	c.URI = strings.TrimSpace(c.URI)
	if c.URI == "" {
		return Config{}, fmt.Errorf("document uri is required")
	}
	if c.Service == nil {
		return Config{}, fmt.Errorf("annotation service is required")
	}
	c.Title = strings.TrimSpace(c.Title)
	c.WatchPath = strings.TrimSpace(c.WatchPath)
	c.User = strings.TrimSpace(c.User)

	if c.RefreshInterval <= 0 {
		c.RefreshInterval = defaultRefreshInterval
	}

	c.Theme = strings.TrimSpace(c.Theme)
	if c.Theme == "" && c.Prefs != nil {
		c.Theme = c.Prefs.Snapshot().Theme
	}
	if c.Theme == "" {
		c.Theme = styles.DefaultTheme.Name
	}
	if _, ok := styles.Themes[c.Theme]; !ok {
		return Config{}, fmt.Errorf("invalid theme %q", c.Theme)
	}

	defaults := config.DefaultConfig().Sidebar
	if c.Sidebar == (config.SidebarConfig{}) {
		c.Sidebar = defaults
	}
	if c.Sidebar.DefaultHeight <= 0 {
		c.Sidebar.DefaultHeight = defaults.DefaultHeight
	}
	if c.Sidebar.MarginAbove < 0 {
		c.Sidebar.MarginAbove = defaults.MarginAbove
	}
	if c.Sidebar.MarginBelow < 0 {
		c.Sidebar.MarginBelow = defaults.MarginBelow
	}
	if c.Sidebar.DebounceInterval <= 0 {
		c.Sidebar.DebounceInterval = defaults.DebounceInterval
	}
	if c.Sidebar.CollapsedBodyLines <= 0 {
		c.Sidebar.CollapsedBodyLines = defaults.CollapsedBodyLines
	}
	if c.Sidebar.ScrollRoot == "" {
		c.Sidebar.ScrollRoot = defaults.ScrollRoot
	}
	return c, nil
}
