package sidebar

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/margin/internal/models"
	"github.com/tOgg1/margin/internal/sidebar/styles"
	"github.com/tOgg1/margin/internal/store"
)

const (
	composeBodyRows = 5

	// composeChromeRows covers the title, tag input, hint and border rows.
	composeChromeRows = 5

	composeCharLimit = 4000
)

type composeAction int

const (
	composeNone composeAction = iota
	composeSubmit
	composeCancel
)

// composeState is the editor for a new page note, annotation or reply.
type composeState struct {
	draft     *models.Annotation
	body      textarea.Model
	tags      textinput.Model
	focusTags bool
	saving    bool
	err       string
}

func newCompose(draft *models.Annotation, saved store.ComposeDraft, restore bool) *composeState {
	body := textarea.New()
	body.Placeholder = "Write an annotation..."
	body.CharLimit = composeCharLimit
	body.ShowLineNumbers = false
	body.SetHeight(composeBodyRows)
	body.Focus()

	tags := textinput.New()
	tags.Placeholder = "tags, comma separated"
	tags.Prompt = "tags: "
	tags.CharLimit = 256

	if restore {
		body.SetValue(saved.Body)
		tags.SetValue(saved.Tags)
	}
	return &composeState{draft: draft, body: body, tags: tags}
}

// height is the number of rows the editor occupies.
func (c *composeState) height() int {
	return composeBodyRows + composeChromeRows
}

func (c *composeState) setWidth(width int) {
	inner := max(10, width-4)
	c.body.SetWidth(inner)
	c.tags.Width = max(4, inner-len(c.tags.Prompt))
}

func (c *composeState) update(msg tea.Msg) (composeAction, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		if c.saving {
			return composeNone, nil
		}
		switch key.String() {
		case "esc":
			return composeCancel, nil
		case "ctrl+s", "ctrl+j", "ctrl+enter":
			if strings.TrimSpace(c.body.Value()) == "" && len(c.tagList()) == 0 {
				c.err = "nothing to save"
				return composeNone, nil
			}
			c.err = ""
			return composeSubmit, nil
		case "tab", "shift+tab":
			c.toggleFocus()
			return composeNone, nil
		}
	}

	var cmd tea.Cmd
	if c.focusTags {
		c.tags, cmd = c.tags.Update(msg)
	} else {
		c.body, cmd = c.body.Update(msg)
	}
	return composeNone, cmd
}

func (c *composeState) toggleFocus() {
	c.focusTags = !c.focusTags
	if c.focusTags {
		c.body.Blur()
		c.tags.Focus()
		return
	}
	c.tags.Blur()
	c.body.Focus()
}

// apply copies the editor contents onto the draft annotation.
func (c *composeState) apply() *models.Annotation {
	c.draft.Text = strings.TrimSpace(c.body.Value())
	c.draft.Tags = c.tagList()
	return c.draft
}

// saved returns the editor contents as a persisted draft.
func (c *composeState) saved() store.ComposeDraft {
	return store.ComposeDraft{
		URI:     c.draft.URI,
		ReplyTo: c.draft.ParentID(),
		Body:    c.body.Value(),
		Tags:    c.tags.Value(),
	}
}

func (c *composeState) tagList() []string {
	return splitTags(c.tags.Value())
}

func (c *composeState) title() string {
	switch {
	case models.IsReply(c.draft):
		return "Reply to " + shortID(c.draft.ParentID())
	case models.IsPageNote(c.draft):
		return "New page note"
	default:
		return "New annotation"
	}
}

func (c *composeState) view(theme styles.Theme, width int) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(theme.Base.Accent))
	hint := "ctrl+s save  tab tags/body  esc cancel"
	if c.saving {
		hint = "saving..."
	}

	lines := []string{
		titleStyle.Render(c.title()),
		c.body.View(),
		c.tags.View(),
	}
	if c.err != "" {
		hint = c.err
		lines = append(lines, theme.ErrorStyle().Render(hint))
	} else {
		lines = append(lines, theme.Muted().Render(hint))
	}

	box := styles.PanelStyle(theme, true).Width(max(0, width-2))
	return box.Render(strings.Join(lines, "\n"))
}

// splitTags parses a comma or space separated tag list, dropping blanks and
// duplicates.
func splitTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		key := strings.ToLower(field)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, field)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func shortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
