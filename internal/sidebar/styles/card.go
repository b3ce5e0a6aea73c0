package styles

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
)

const (
	quotePrefix = "▎ "
	ellipsis    = "…"

	// maxChipWidth caps a single tag chip, brackets included.
	maxChipWidth = 24
)

// CardStyles contains pre-built styles for annotation cards.
type CardStyles struct {
	Theme      Theme
	UserColors *UserColorMapper

	Timestamp lipgloss.Style
	Body      lipgloss.Style
	Quote     lipgloss.Style
	QuoteBar  lipgloss.Style
	Tag       lipgloss.Style
	Toggle    lipgloss.Style
	Badge     lipgloss.Style
	Draft     lipgloss.Style
	Hidden    lipgloss.Style
	Highlight lipgloss.Style
}

// NewCardStyles builds a reusable style set for cards.
func NewCardStyles(theme Theme, mapper *UserColorMapper) CardStyles {
	if mapper == nil {
		mapper = NewUserColorMapper(theme.UserPalette)
	}
	return CardStyles{
		Theme:      theme,
		UserColors: mapper,
		Timestamp:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Base.Muted)),
		Body:       lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Base.Foreground)),
		Quote:      lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Card.Quote)).Italic(true),
		QuoteBar:   lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Card.QuoteBar)),
		Tag: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Card.TagText)).
			Background(lipgloss.Color(theme.Card.Tag)),
		Toggle: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Base.Accent)).Underline(true),
		Badge:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Base.Muted)).Bold(true),
		Draft:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Card.Draft)).Bold(true),
		Hidden: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Card.Hidden)).Faint(true),
		Highlight: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Card.Highlight)).
			Bold(true),
	}
}

// RenderHeader renders the author and a time label.
func (s CardStyles) RenderHeader(user, timeLabel string) string {
	name := DisplayName(user)
	out := s.UserColors.Foreground(name).Render(name)
	if timeLabel != "" {
		out += " " + s.Timestamp.Render(timeLabel)
	}
	return out
}

// RenderQuote renders quoted target text behind a vertical bar, at most
// maxLines lines.
func (s CardStyles) RenderQuote(quote string, width, maxLines int) []string {
	quote = strings.Join(strings.Fields(quote), " ")
	if quote == "" {
		return nil
	}
	inner := width - lipgloss.Width(quotePrefix)
	if inner < 1 {
		inner = 1
	}
	lines := strings.Split(wordwrap.String(quote, inner), "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
		lines[maxLines-1] = TruncateWidth(lines[maxLines-1]+" "+ellipsis, inner)
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, s.QuoteBar.Render(quotePrefix)+s.Quote.Render(line))
	}
	return out
}

// RenderTagChips renders normalized tags as chips that fit within width.
// Chips that do not fit are summarized as "+N".
func (s CardStyles) RenderTagChips(tags []string, width int) string {
	normalized := normalizeTags(tags)
	if len(normalized) == 0 || width <= 0 {
		return ""
	}

	var b strings.Builder
	used := 0
	for i, tag := range normalized {
		chip := "[" + TruncateWidth(tag, maxChipWidth-2) + "]"
		chipWidth := runewidth.StringWidth(chip)
		sep := 0
		if i > 0 {
			sep = 1
		}
		rest := len(normalized) - i
		more := ""
		if rest > 1 {
			more = " +" + strconv.Itoa(rest-1)
		}
		if used+sep+chipWidth+runewidth.StringWidth(more) > width {
			if i == 0 {
				return s.Badge.Render(TruncateWidth("+"+strconv.Itoa(rest), width))
			}
			b.WriteString(" " + s.Badge.Render("+"+strconv.Itoa(rest)))
			break
		}
		if sep > 0 {
			b.WriteString(" ")
		}
		b.WriteString(s.Tag.Render(chip))
		used += sep + chipWidth
	}
	return b.String()
}

// TruncateWidth cuts s to at most width terminal cells, marking the cut with
// an ellipsis.
func TruncateWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, ellipsis)
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		normalized := strings.TrimSpace(tag)
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
