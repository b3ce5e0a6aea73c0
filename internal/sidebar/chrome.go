package sidebar

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/tOgg1/margin/internal/sidebar/styles"
	"github.com/tOgg1/margin/internal/threading"
)

const (
	headerRows = 1
	footerRows = 1
)

const helpText = "j/k scroll  tab focus  space select  enter expand  n note  r reply  h highlight  / filter  s sort  y copy  T theme  q quit"

const shortHelpText = "? help  q quit"

func (m *Model) renderHeader() string {
	title := m.title
	if title == "" {
		title = m.uri
	}

	count := threading.CountAnnotations(m.root)
	meta := []string{fmt.Sprintf("%d", count), "sort:" + string(m.state.Sort())}
	if query := m.state.Filter(); query != "" {
		meta = append(meta, "filter:"+query)
	}
	if n := len(m.state.Selected()); n > 0 {
		meta = append(meta, fmt.Sprintf("%d selected", n))
	}
	right := m.theme.Muted().Render(strings.Join(meta, "  "))

	titleWidth := max(1, m.width-lipgloss.Width(right)-1)
	left := m.theme.Accent().Bold(true).Render(styles.TruncateWidth(title, titleWidth))
	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

// renderBody draws the rows of the virtual list that fall inside the
// viewport. Rows above the window belong to the upper spacer and rows past
// the last card to the lower spacer; both render blank.
func (m *Model) renderBody(height int) string {
	if len(m.cards) == 0 {
		return m.renderEmpty(height)
	}

	top := m.pane.ScrollTop()
	rows := make([]string, 0, height)
	offset := m.window.OffscreenUpperHeight
	cardIdx, lineIdx := 0, 0

	// Skip to the first visible row.
	row := offset
	for cardIdx < len(m.cards) {
		span := m.cards[cardIdx].HeightWithMargins()
		if row+span > top {
			lineIdx = max(0, top-row)
			break
		}
		row += span
		cardIdx++
	}
	for range max(0, min(offset, top+height)-top) {
		rows = append(rows, "")
	}

	for len(rows) < height && cardIdx < len(m.cards) {
		card := m.cards[cardIdx]
		if lineIdx < len(card.lines) {
			rows = append(rows, card.lines[lineIdx])
		} else {
			rows = append(rows, "")
		}
		lineIdx++
		if lineIdx >= card.HeightWithMargins() {
			cardIdx++
			lineIdx = 0
		}
	}
	for len(rows) < height {
		rows = append(rows, "")
	}
	return strings.Join(rows, "\n")
}

func (m *Model) renderEmpty(height int) string {
	message := "No annotations"
	switch {
	case !m.loaded && m.lastErr == nil:
		message = "Loading..."
	case m.state.Filter() != "" || m.state.HasSelection():
		message = "No matches"
	}
	return lipgloss.Place(max(1, m.width), max(1, height), lipgloss.Center, lipgloss.Center, m.theme.Muted().Render(message))
}

func (m *Model) renderFooter() string {
	var line string
	switch {
	case m.filter != nil:
		line = m.filter.input.View()
	case m.lastErr != nil:
		line = m.theme.ErrorStyle().Render("error: " + m.lastErr.Error())
	case m.status != "":
		line = m.theme.Accent().Render(m.status)
	case m.showHelp:
		line = m.theme.Muted().Render(helpText)
	default:
		line = m.theme.Muted().Render(shortHelpText)
	}
	return truncate.StringWithTail(line, uint(max(1, m.width)), "…")
}
