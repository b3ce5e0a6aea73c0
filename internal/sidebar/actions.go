package sidebar

import (
	"context"
	"slices"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tOgg1/margin/internal/models"
	"github.com/tOgg1/margin/internal/sidebar/styles"
	"github.com/tOgg1/margin/internal/store"
	"github.com/tOgg1/margin/internal/threading"
)

// copyToClipboard is swapped out in tests.
var copyToClipboard = clipboard.WriteAll

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.compose != nil {
		return m.handleComposeKey(msg)
	}
	if m.filter != nil {
		return m.handleFilterKey(msg)
	}

	m.status = ""
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit
	case "?":
		m.showHelp = !m.showHelp
	case "j", "down":
		m.scrollBy(1)
	case "k", "up":
		m.scrollBy(-1)
	case "ctrl+d", "pgdown":
		m.scrollBy(max(1, m.pane.Height()/2))
	case "ctrl+u", "pgup":
		m.scrollBy(-max(1, m.pane.Height()/2))
	case "g", "home":
		m.scrollTo(0)
	case "G", "end":
		m.scrollTo(m.list.TotalHeight())
	case "tab":
		m.moveFocus(1)
	case "shift+tab":
		m.moveFocus(-1)
	case " ", "space":
		if id := m.state.Focused(); id != "" {
			m.state.ToggleSelected(id)
		}
	case "enter":
		if id := m.state.Focused(); id != "" {
			m.state.ToggleExpanded(id)
		}
	case "n":
		return m.startCompose(m.newPageNote())
	case "r":
		draft, err := m.newReply()
		if err != "" {
			m.status = err
			return nil
		}
		return m.startCompose(draft)
	case "h":
		return m.createHighlight()
	case "/":
		m.filter = newFilter(m.state.Filter())
		m.filter.input.Width = max(10, m.width-4)
		return textinput.Blink
	case "s":
		key := m.state.CycleSort()
		if m.prefs != nil {
			m.prefs.SetSort(string(key))
		}
		m.status = "sort: " + string(key)
	case "T":
		m.cycleTheme()
	case "y":
		m.copyFocused()
	case "esc":
		m.state.ClearSelection()
		m.state.SetFilter("")
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if m.compose != nil {
		return nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.scrollBy(-wheelStep)
	case tea.MouseButtonWheelDown:
		m.scrollBy(wheelStep)
	}
	return nil
}

// scrollBy moves the viewport and schedules a debounced recompute. The view
// shows the new position at once; the window catches up when scrolling
// settles.
func (m *Model) scrollBy(delta int) {
	m.scrollTo(m.pane.ScrollTop() + delta)
}

func (m *Model) scrollTo(top int) {
	before := m.pane.ScrollTop()
	m.pane.scrollTo(top, m.list.TotalHeight())
	if m.pane.ScrollTop() != before {
		m.list.HandleScroll()
	}
}

// moveFocus steps the focused thread through the top-level order and brings
// it into view.
func (m *Model) moveFocus(delta int) {
	ids := threading.TopLevelIDs(m.root)
	if len(ids) == 0 {
		return
	}
	idx := slices.Index(ids, m.state.Focused())
	switch {
	case idx < 0 && delta > 0:
		idx = 0
	case idx < 0:
		idx = len(ids) - 1
	default:
		idx = (idx + delta + len(ids)) % len(ids)
	}
	m.state.SetFocused(ids[idx])
	m.reveal(ids[idx])
}

// ensureFocus drops focus from a thread that is no longer listed.
func (m *Model) ensureFocus() {
	focused := m.state.Focused()
	if focused == "" {
		return
	}
	if !slices.Contains(threading.TopLevelIDs(m.root), focused) {
		m.state.SetFocused("")
	}
}

// reveal scrolls so a top-level thread is in view. A rendered thread is
// scrolled to the top of the pane; one outside the window is scrolled to by
// its estimated offset and the window follows after the debounce.
func (m *Model) reveal(id string) {
	if _, rendered := m.pane.card(id); rendered {
		offset, _ := m.list.OffsetOf(id)
		top, height := m.pane.ScrollTop(), m.pane.Height()
		if offset >= top && offset+m.list.Height(id) <= top+height {
			return
		}
		if m.list.ScrollIntoView(id) {
			m.relayout()
			return
		}
	}
	if offset, ok := m.list.OffsetOf(id); ok {
		m.scrollTo(offset)
	}
}

func (m *Model) focusedThread() *threading.Thread {
	id := m.state.Focused()
	if id == "" {
		return nil
	}
	for _, thread := range threading.TopLevel(m.root) {
		if thread.ID == id {
			return thread
		}
	}
	return nil
}

func (m *Model) newPageNote() *models.Annotation {
	return &models.Annotation{
		URI:    m.uri,
		User:   m.user,
		Target: []models.Target{{Source: m.uri}},
	}
}

// newReply starts a reply to the last annotation in the focused thread's
// root. It returns a status message when no reply is possible.
func (m *Model) newReply() (*models.Annotation, string) {
	thread := m.focusedThread()
	if thread == nil || thread.Annotation == nil {
		return nil, "focus a thread to reply (tab)"
	}
	parent := thread.Annotation
	if models.IsNew(parent) {
		return nil, "save the annotation before replying"
	}
	refs := append(slices.Clone(parent.References), parent.ID)
	return &models.Annotation{
		URI:        m.uri,
		User:       m.user,
		References: refs,
	}, ""
}

// startCompose announces a draft, adds it to the list and opens the editor.
// A previously unsent draft for the same slot is restored.
func (m *Model) startCompose(draft *models.Annotation) tea.Cmd {
	m.service.Begin(context.Background(), draft)
	saved := m.savedDraft(draft)
	m.compose = newCompose(draft, saved, saved.Body != "" || saved.Tags != "")
	m.compose.setWidth(m.width)
	m.pane.setHeight(m.bodyHeight())

	m.drafts = append(m.drafts, draft)
	m.rebuild()
	m.reveal(draft.Key())
	m.list.HandleResize()
	return textarea.Blink
}

func (m *Model) handleComposeKey(msg tea.KeyMsg) tea.Cmd {
	action, cmd := m.compose.update(msg)
	switch action {
	case composeSubmit:
		m.compose.saving = true
		return m.saveComposeCmd(m.compose.apply())
	case composeCancel:
		if m.prefs != nil {
			m.prefs.SetDraft(m.compose.saved())
			if strings.TrimSpace(m.compose.body.Value()) != "" {
				m.status = "draft kept"
			}
		}
		m.closeCompose()
		return nil
	}
	return cmd
}

func (m *Model) saveComposeCmd(ann *models.Annotation) tea.Cmd {
	service := m.service
	return func() tea.Msg {
		err := service.Save(context.Background(), ann)
		return composeSavedMsg{ann: ann, err: err}
	}
}

func (m *Model) applyComposeSaved(msg composeSavedMsg) tea.Cmd {
	if m.compose == nil || m.compose.draft != msg.ann {
		return nil
	}
	if msg.err != nil {
		m.compose.saving = false
		m.compose.err = msg.err.Error()
		return nil
	}
	if m.prefs != nil {
		m.prefs.DeleteDraft(msg.ann.URI, msg.ann.ParentID())
	}
	m.annotations = append(m.annotations, msg.ann)
	m.closeCompose()
	m.status = "saved"
	return m.loadCmd()
}

// closeCompose drops the editor and its draft from the list.
func (m *Model) closeCompose() {
	if m.compose == nil {
		return
	}
	draft := m.compose.draft
	m.drafts = slices.DeleteFunc(m.drafts, func(a *models.Annotation) bool { return a == draft })
	m.compose = nil
	m.pane.setHeight(m.bodyHeight())
	m.list.HandleResize()
	m.rebuild()
}

func (m *Model) savedDraft(draft *models.Annotation) (saved store.ComposeDraft) {
	if m.prefs == nil {
		return saved
	}
	if d, ok := m.prefs.Draft(draft.URI, draft.ParentID()); ok {
		return d
	}
	return saved
}

// createHighlight stores a highlight over the focused annotation's anchored
// region. Highlights have no body, so no editor opens.
func (m *Model) createHighlight() tea.Cmd {
	thread := m.focusedThread()
	if thread == nil || thread.Annotation == nil || !models.HasSelector(thread.Annotation) {
		m.status = "focus an anchored annotation to highlight its text"
		return nil
	}
	source := thread.Annotation
	ann := &models.Annotation{
		URI:    m.uri,
		User:   m.user,
		Target: slices.Clone(source.Target),
	}
	m.service.Begin(context.Background(), ann)
	service := m.service
	return func() tea.Msg {
		err := service.Save(context.Background(), ann)
		return highlightSavedMsg{ann: ann, err: err}
	}
}

func (m *Model) handleFilterKey(msg tea.KeyMsg) tea.Cmd {
	action, cmd := m.filter.update(msg)
	switch action {
	case filterApply:
		m.state.SetFilter(m.filter.query())
		m.filter = nil
		return nil
	case filterClear:
		m.state.SetFilter("")
		m.filter = nil
		return nil
	}
	m.state.SetFilter(m.filter.query())
	return cmd
}

func (m *Model) copyFocused() {
	thread := m.focusedThread()
	if thread == nil || thread.Annotation == nil {
		m.status = "nothing to copy"
		return
	}
	text := thread.Annotation.Text
	if strings.TrimSpace(text) == "" {
		text = models.Quote(thread.Annotation)
	}
	if err := copyToClipboard(text); err != nil {
		m.logger.Warn().Err(err).Msg("clipboard write failed")
		m.status = "copy failed: " + err.Error()
		return
	}
	m.status = "copied"
}

func (m *Model) cycleTheme() {
	next := styles.HighContrastTheme
	if m.theme.Name == styles.HighContrastTheme.Name {
		next = styles.DefaultTheme
	}
	m.theme = next
	m.cardStyles = styles.NewCardStyles(next, nil)
	if m.prefs != nil {
		m.prefs.SetTheme(next.Name)
	}
	m.relayout()
	m.status = "theme: " + next.Name
}
