package sidebar

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/tOgg1/margin/internal/models"
)

// filterState is the "/" query input.
type filterState struct {
	input textinput.Model
}

func newFilter(query string) *filterState {
	input := textinput.New()
	input.Prompt = "/"
	input.Placeholder = "filter by text, user, quote or tag"
	input.CharLimit = 200
	input.SetValue(query)
	input.CursorEnd()
	input.Focus()
	return &filterState{input: input}
}

type filterAction int

const (
	filterEditing filterAction = iota
	filterApply
	filterClear
)

func (f *filterState) update(msg tea.Msg) (filterAction, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			return filterApply, nil
		case "esc":
			return filterClear, nil
		}
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return filterEditing, cmd
}

func (f *filterState) query() string {
	return strings.TrimSpace(f.input.Value())
}

// searchText is what a filter query is matched against.
func searchText(ann *models.Annotation) string {
	parts := []string{ann.User, ann.Text, models.Quote(ann)}
	parts = append(parts, ann.Tags...)
	return strings.Join(parts, " ")
}

// fuzzyMatches returns the keys of annotations matching query. A blank query
// returns nil.
func fuzzyMatches(query string, annotations []*models.Annotation) map[string]struct{} {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	texts := make([]string, len(annotations))
	for i, ann := range annotations {
		texts[i] = searchText(ann)
	}
	matches := fuzzy.Find(query, texts)
	out := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		out[annotations[match.Index].Key()] = struct{}{}
	}
	return out
}
