package sidebar

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/margin/internal/config"
	"github.com/tOgg1/margin/internal/events"
	"github.com/tOgg1/margin/internal/models"
	"github.com/tOgg1/margin/internal/source"
	"github.com/tOgg1/margin/internal/store"
	"github.com/tOgg1/margin/internal/threading"
)

const testURI = "https://example.com/essay"

func TestNewModelRequiresURIAndService(t *testing.T) {
	_, err := NewModel(Config{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "uri")

	_, err = NewModel(Config{URI: testURI})
	require.Error(t, err)
	require.Contains(t, err.Error(), "service")
}

func TestNewModelRejectsInvalidTheme(t *testing.T) {
	src := source.NewFileSource(filepath.Join(t.TempDir(), "doc.yaml"))
	_, err := NewModel(Config{
		URI:     testURI,
		Service: source.NewService(src, nil),
		Theme:   "matrix",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid theme")
}

func TestNewModelAppliesSidebarDefaults(t *testing.T) {
	model, _ := newTestModel(t, nil, func(cfg *Config) { cfg.Sidebar = config.SidebarConfig{} })
	defaults := config.DefaultConfig().Sidebar
	require.Equal(t, defaults.CollapsedBodyLines, model.collapsedLines)
	require.Equal(t, defaults.DefaultHeight, model.list.Height("never-measured"))
	require.Equal(t, threading.SortLocation, model.state.Sort())
}

func TestNewModelRestoresSortFromPrefs(t *testing.T) {
	prefs := store.NewPrefs("")
	prefs.SetSort(string(threading.SortNewest))
	model, _ := newTestModel(t, nil, func(cfg *Config) { cfg.Prefs = prefs })
	require.Equal(t, threading.SortNewest, model.state.Sort())
	require.Equal(t, testURI, prefs.Snapshot().LastURI)
}

func TestUpdateHandlesResizeHelpAndQuit(t *testing.T) {
	model, _ := newTestModel(t, nil)

	model = applyUpdate(t, model, tea.WindowSizeMsg{Width: 60, Height: 20})
	require.Equal(t, 60, model.width)
	require.Equal(t, 20, model.height)
	require.Equal(t, 20-headerRows-footerRows, model.pane.Height())

	model = applyUpdate(t, model, runeKey('?'))
	require.True(t, model.showHelp)
	model = applyUpdate(t, model, runeKey('?'))
	require.False(t, model.showHelp)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	require.True(t, ok)
}

func TestLoadRendersOnlyTheWindow(t *testing.T) {
	model, _ := newLoadedModel(t, sampleAnnotations(40))

	window := model.list.Window()
	require.NotEmpty(t, window.Threads)
	require.Less(t, len(window.Threads), 40)
	require.Equal(t, "a00", window.Threads[0].ID)
	require.Zero(t, window.OffscreenUpperHeight)
	require.Positive(t, window.OffscreenLowerHeight)
	require.Equal(t, model.list.TotalHeight(), window.TotalHeight)

	for _, thread := range window.Threads {
		card, ok := model.pane.card(thread.ID)
		require.True(t, ok, thread.ID)
		require.Equal(t, card.HeightWithMargins(), model.list.Height(thread.ID))
	}

	view := model.View()
	require.Len(t, strings.Split(view, "\n"), 20)
	require.Contains(t, view, "note 0")
	require.NotContains(t, view, "note 39")
}

func TestScrollToEndMovesWindowAfterDebounce(t *testing.T) {
	model, _ := newLoadedModel(t, sampleAnnotations(40))
	before := model.list.Stats().Recomputes

	model = applyUpdate(t, model, runeKey('G'))
	require.Positive(t, model.pane.ScrollTop())
	require.Equal(t, before, model.list.Stats().Recomputes)

	model = settle(t, model)
	window := model.list.Window()
	require.Positive(t, window.OffscreenUpperHeight)
	require.Equal(t, "a39", window.Threads[len(window.Threads)-1].ID)
	require.Contains(t, model.View(), "note 39")

	model = applyUpdate(t, model, runeKey('g'))
	require.Zero(t, model.pane.ScrollTop())
	model = settle(t, model)
	require.Equal(t, "a00", model.list.Window().Threads[0].ID)
}

func TestMouseWheelScrolls(t *testing.T) {
	model, _ := newLoadedModel(t, sampleAnnotations(40))

	model = applyUpdate(t, model, tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress})
	require.Equal(t, wheelStep, model.pane.ScrollTop())
	model = applyUpdate(t, model, tea.MouseMsg{Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress})
	model = applyUpdate(t, model, tea.MouseMsg{Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress})
	require.Zero(t, model.pane.ScrollTop())
}

func TestFocusAndSelectionFilterThreads(t *testing.T) {
	model, _ := newLoadedModel(t, sampleAnnotations(10))

	model = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, "a00", model.state.Focused())
	model = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, "a01", model.state.Focused())
	model = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyShiftTab})
	require.Equal(t, "a00", model.state.Focused())

	model = applyUpdate(t, model, runeKey(' '))
	require.True(t, model.state.IsSelected("a00"))
	require.Equal(t, []string{"a00"}, threading.TopLevelIDs(model.root))

	model = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	require.False(t, model.state.HasSelection())
	require.Len(t, threading.TopLevel(model.root), 10)
}

func TestEnterTogglesExpandedBody(t *testing.T) {
	anns := sampleAnnotations(1)
	anns[0].Text = strings.Repeat("long body line\n", 12)
	model, _ := newLoadedModel(t, anns)

	collapsed := model.list.Height("a00")
	require.Contains(t, model.View(), "More")

	model = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyTab})
	model = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, model.state.IsExpanded("a00"))
	require.Greater(t, model.list.Height("a00"), collapsed)
	require.Contains(t, model.View(), "Less")
}

func TestFilterNarrowsThreads(t *testing.T) {
	anns := sampleAnnotations(10)
	anns[6].Text = "zebra crossing"
	model, _ := newLoadedModel(t, anns)

	model = applyUpdate(t, model, runeKey('/'))
	require.NotNil(t, model.filter)
	for _, r := range "zebra" {
		model = applyUpdate(t, model, runeKey(r))
	}
	require.Equal(t, []string{"a06"}, threading.TopLevelIDs(model.root))

	model = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, model.filter)
	require.Equal(t, "zebra", model.state.Filter())
	require.Contains(t, model.renderHeader(), "filter:zebra")

	model = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	require.Empty(t, model.state.Filter())
	require.Len(t, threading.TopLevel(model.root), 10)
}

func TestFilterWithNoMatchesShowsEmptyState(t *testing.T) {
	model, _ := newLoadedModel(t, sampleAnnotations(3))
	model.state.SetFilter("qqqqq")
	model = applyUpdate(t, model, struct{}{})
	require.Empty(t, threading.TopLevel(model.root))
	require.Contains(t, model.View(), "No matches")
}

func TestSortKeyCyclesAndPersists(t *testing.T) {
	prefs := store.NewPrefs("")
	model, _ := newLoadedModel(t, sampleAnnotations(3), func(cfg *Config) { cfg.Prefs = prefs })

	model = applyUpdate(t, model, runeKey('s'))
	next := threading.SortLocation.Next()
	require.Equal(t, next, model.state.Sort())
	require.Equal(t, string(next), prefs.Snapshot().Sort)
	require.Equal(t, "sort: "+string(next), model.status)
}

func TestThemeCyclesAndPersists(t *testing.T) {
	prefs := store.NewPrefs("")
	model, _ := newLoadedModel(t, sampleAnnotations(3), func(cfg *Config) { cfg.Prefs = prefs })

	model = applyUpdate(t, model, runeKey('T'))
	require.Equal(t, "high-contrast", model.theme.Name)
	require.Equal(t, "high-contrast", prefs.Snapshot().Theme)
	model = applyUpdate(t, model, runeKey('T'))
	require.Equal(t, "default", model.theme.Name)
}

func TestNewPageNoteComposeAndSave(t *testing.T) {
	pub := events.NewInMemoryPublisher()
	var created []*models.Event
	require.NoError(t, pub.Subscribe("test", events.Filter{}, func(event *models.Event) {
		created = append(created, event)
	}))
	model, src := newLoadedModel(t, sampleAnnotations(5), func(cfg *Config) { cfg.Publisher = pub })

	model.state.Select("a02")
	model = applyUpdate(t, model, runeKey('n'))
	require.NotNil(t, model.compose)
	require.Len(t, model.drafts, 1)
	draft := model.drafts[0]
	require.NotEmpty(t, draft.Tag)
	require.True(t, models.IsPageNote(draft))
	require.False(t, model.state.HasSelection(), "a new page note clears the selection")
	require.NotNil(t, threading.Find(model.root, draft.Tag))
	require.Contains(t, model.View(), "New page note")
	require.Equal(t, models.EventTypeBeforeAnnotationCreated, created[len(created)-1].Type)

	model.compose.body.SetValue("fresh thoughts")
	model, cmd := updateWithCmd(t, model, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	require.True(t, model.compose.saving)

	model, cmd = updateWithCmd(t, model, cmd())
	require.Nil(t, model.compose)
	require.Empty(t, model.drafts)
	require.Equal(t, "saved", model.status)
	require.NotEmpty(t, draft.ID)
	require.NotNil(t, threading.Find(model.root, draft.ID))

	loaded, err := src.Load(context.Background(), testURI)
	require.NoError(t, err)
	require.Len(t, loaded, 6)

	require.NotNil(t, cmd)
	model = applyUpdate(t, model, cmd())
	require.Len(t, model.annotations, 6)
}

func TestComposeSubmitRequiresContent(t *testing.T) {
	model, _ := newLoadedModel(t, sampleAnnotations(2))

	model = applyUpdate(t, model, runeKey('n'))
	model, cmd := updateWithCmd(t, model, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Nil(t, cmd)
	require.Equal(t, "nothing to save", model.compose.err)
	require.False(t, model.compose.saving)
}

func TestComposeCancelKeepsDraftText(t *testing.T) {
	prefs := store.NewPrefs("")
	model, _ := newLoadedModel(t, sampleAnnotations(2), func(cfg *Config) { cfg.Prefs = prefs })

	model = applyUpdate(t, model, runeKey('n'))
	model.compose.body.SetValue("half written")
	model = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	require.Nil(t, model.compose)
	require.Empty(t, model.drafts)
	require.Equal(t, "draft kept", model.status)

	saved, ok := prefs.Draft(testURI, "")
	require.True(t, ok)
	require.Equal(t, "half written", saved.Body)

	model = applyUpdate(t, model, runeKey('n'))
	require.Equal(t, "half written", model.compose.body.Value())
}

func TestReplyNeedsFocusedThread(t *testing.T) {
	model, _ := newLoadedModel(t, sampleAnnotations(3))

	model = applyUpdate(t, model, runeKey('r'))
	require.Nil(t, model.compose)
	require.Contains(t, model.status, "focus a thread")

	model = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyTab})
	model = applyUpdate(t, model, runeKey('r'))
	require.NotNil(t, model.compose)
	require.Equal(t, []string{"a00"}, model.compose.draft.References)
	require.Equal(t, "Reply to a00", model.compose.title())
	require.NotNil(t, threading.Find(model.root, model.compose.draft.Tag))
}

func TestHighlightDuplicatesFocusedTarget(t *testing.T) {
	model, src := newLoadedModel(t, sampleAnnotations(3))

	model = applyUpdate(t, model, runeKey('h'))
	require.Contains(t, model.status, "focus an anchored annotation")

	model = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyTab})
	model.state.Select("a01")
	model, cmd := updateWithCmd(t, model, runeKey('h'))
	require.NotNil(t, cmd)
	require.True(t, model.state.IsSelected("a01"), "highlights keep the selection")

	msg, ok := cmd().(highlightSavedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	require.True(t, models.IsHighlight(msg.ann))
	require.Equal(t, "the text at 0", models.Quote(msg.ann))

	model = applyUpdate(t, model, msg)
	require.Equal(t, "highlight saved", model.status)

	loaded, err := src.Load(context.Background(), testURI)
	require.NoError(t, err)
	require.Len(t, loaded, 4)
}

func TestCopyFocusedText(t *testing.T) {
	var copied string
	orig := copyToClipboard
	copyToClipboard = func(text string) error {
		copied = text
		return nil
	}
	t.Cleanup(func() { copyToClipboard = orig })

	model, _ := newLoadedModel(t, sampleAnnotations(3))
	model = applyUpdate(t, model, runeKey('y'))
	require.Equal(t, "nothing to copy", model.status)

	model = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyTab})
	model = applyUpdate(t, model, runeKey('y'))
	require.Equal(t, "note 0", copied)
	require.Equal(t, "copied", model.status)
}

func TestLoadErrorShownInFooter(t *testing.T) {
	model, _ := newLoadedModel(t, sampleAnnotations(2))
	model = applyUpdate(t, model, annotationsLoadedMsg{err: fmt.Errorf("disk on fire")})
	require.Contains(t, model.renderFooter(), "disk on fire")
	require.Len(t, threading.TopLevel(model.root), 2, "a failed reload keeps the last threads")
}

func TestFocusDroppedWhenThreadDisappears(t *testing.T) {
	model, _ := newLoadedModel(t, sampleAnnotations(3))
	model = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, "a00", model.state.Focused())

	model = applyUpdate(t, model, annotationsLoadedMsg{now: time.Now(), annotations: sampleAnnotations(3)[1:]})
	require.Empty(t, model.state.Focused())
}

func sampleAnnotations(n int) []*models.Annotation {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	out := make([]*models.Annotation, 0, n)
	for i := range n {
		out = append(out, &models.Annotation{
			ID:   fmt.Sprintf("a%02d", i),
			URI:  testURI,
			User: "acct:alice@example.com",
			Text: fmt.Sprintf("note %d", i),
			Target: []models.Target{{
				Source: testURI,
				Selectors: []models.Selector{
					{Type: models.SelectorTextQuote, Exact: fmt.Sprintf("the text at %d", i*10)},
					{Type: models.SelectorTextPosition, Start: i * 10, End: i*10 + 5},
				},
			}},
			Created: base.Add(time.Duration(i) * time.Minute),
			Updated: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func newTestModel(t *testing.T, annotations []*models.Annotation, opts ...func(*Config)) (*Model, *source.FileSource) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "essay.yaml")
	require.NoError(t, source.WriteDocument(path, &source.Document{URI: testURI, Annotations: annotations}))
	src := source.NewFileSource(path)

	sidebar := config.DefaultConfig().Sidebar
	sidebar.MarginAbove = 0
	sidebar.MarginBelow = 0
	sidebar.DebounceInterval = time.Hour

	cfg := Config{
		URI:       testURI,
		User:      "acct:tester@example.com",
		Publisher: events.NewInMemoryPublisher(),
		Sidebar:   sidebar,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Service = source.NewService(src, cfg.Publisher)

	model, err := NewModel(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, model.Close())
	})
	return model, src
}

// newLoadedModel sizes the model to 60x20 and runs the initial load.
func newLoadedModel(t *testing.T, annotations []*models.Annotation, opts ...func(*Config)) (*Model, *source.FileSource) {
	t.Helper()
	model, src := newTestModel(t, annotations, opts...)
	model = applyUpdate(t, model, tea.WindowSizeMsg{Width: 60, Height: 20})
	model = applyUpdate(t, model, model.loadCmd()())
	require.True(t, model.loaded)
	return model, src
}

// settle runs the pending debounced recompute and delivers the window change.
func settle(t *testing.T, model *Model) *Model {
	t.Helper()
	model.list.Flush()
	return applyUpdate(t, model, windowChangedMsg{})
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{
		Type:  tea.KeyRunes,
		Runes: []rune{r},
	}
}

func applyUpdate(t *testing.T, model *Model, msg tea.Msg) *Model {
	t.Helper()
	out, _ := updateWithCmd(t, model, msg)
	return out
}

func updateWithCmd(t *testing.T, model *Model, msg tea.Msg) (*Model, tea.Cmd) {
	t.Helper()
	next, cmd := model.Update(msg)
	out, ok := next.(*Model)
	require.True(t, ok)
	return out, cmd
}
