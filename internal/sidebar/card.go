package sidebar

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/tOgg1/margin/internal/models"
	"github.com/tOgg1/margin/internal/sidebar/styles"
	"github.com/tOgg1/margin/internal/threading"
)

const (
	// replyIndent is the extra indentation per reply level.
	replyIndent = 2

	// maxIndentDepth caps reply indentation on narrow panes.
	maxIndentDepth = 4

	// quoteLines is how much quoted target text a card shows.
	quoteLines = 3

	// overflowThreshold keeps bodies only slightly longer than the collapsed
	// height from getting a toggle.
	overflowThreshold = 1

	minCardWidth = 12
)

// cardOptions carries everything a card layout depends on.
type cardOptions struct {
	width          int
	now            time.Time
	styles         styles.CardStyles
	collapsedLines int
	expanded       bool
	focused        bool
	selected       bool
	isDraft        func(*models.Annotation) bool
}

// renderThreadCard lays out a top-level thread and its replies.
func renderThreadCard(thread *threading.Thread, opts cardOptions) *renderedCard {
	width := max(minCardWidth, opts.width)
	inner := width - 2 // left border and padding

	var content []string
	for _, node := range threading.Flatten(thread) {
		depth := min(node.Depth, maxIndentDepth)
		indent := strings.Repeat(" ", depth*replyIndent)
		nodeWidth := max(minCardWidth/2, inner-len(indent))
		lines := renderAnnotation(node, nodeWidth, opts)
		for _, line := range lines {
			content = append(content, indent+line)
		}
	}
	if thread.ReplyCount > 0 {
		label := fmt.Sprintf("%d replies", thread.ReplyCount)
		if thread.ReplyCount == 1 {
			label = "1 reply"
		}
		content = append(content, opts.styles.Badge.Render(label))
	}

	border := opts.styles.UserColors.ColorCode(userOf(thread))
	switch {
	case opts.focused:
		border = opts.styles.Theme.Chrome.FocusedItem
	case opts.selected:
		border = opts.styles.Theme.Chrome.SelectedItem
	}
	cardStyle := lipgloss.NewStyle().
		BorderLeft(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(border)).
		PaddingLeft(1).
		Width(width - 1)
	if opts.focused {
		cardStyle = cardStyle.BorderStyle(lipgloss.ThickBorder())
	}

	rendered := cardStyle.Render(strings.Join(content, "\n"))
	return &renderedCard{id: thread.ID, lines: strings.Split(rendered, "\n")}
}

func renderAnnotation(node *threading.Thread, width int, opts cardOptions) []string {
	s := opts.styles
	ann := node.Annotation
	if ann == nil {
		return []string{s.Hidden.Render("(annotation unavailable)")}
	}

	header := s.RenderHeader(ann.User, relativeTime(ann.Created, opts.now))
	if badge := annotationBadge(ann, opts); badge != "" {
		header += " " + badge
	}
	out := []string{header}

	if node.Depth == 0 {
		out = append(out, s.RenderQuote(models.Quote(ann), width, quoteLines)...)
	}

	bodyStyle := s.Body
	if ann.Hidden {
		bodyStyle = s.Hidden
	}
	body, collapsible := collapseBody(wrapBody(ann.Text, width), opts.collapsedLines, opts.expanded)
	for _, line := range body {
		out = append(out, bodyStyle.Render(line))
	}
	if collapsible {
		toggle := "More"
		if opts.expanded {
			toggle = "Less"
		}
		out = append(out, s.Toggle.Render(toggle))
	}

	if chips := s.RenderTagChips(ann.Tags, width); chips != "" {
		out = append(out, chips)
	}
	return out
}

func annotationBadge(ann *models.Annotation, opts cardOptions) string {
	s := opts.styles
	switch {
	case opts.isDraft != nil && opts.isDraft(ann):
		return s.Draft.Render("draft")
	case ann.Hidden:
		return s.Hidden.Render("hidden")
	case models.IsHighlight(ann):
		return s.Highlight.Render("highlight")
	case models.IsPageNote(ann):
		return s.Badge.Render("page note")
	}
	return ""
}

// wrapBody word-wraps every paragraph of text to width.
func wrapBody(text string, width int) []string {
	text = strings.TrimRight(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	width = max(1, width)
	out := make([]string, 0, 4)
	for _, paragraph := range strings.Split(text, "\n") {
		out = append(out, strings.Split(wordwrap.String(paragraph, width), "\n")...)
	}
	return out
}

// collapseBody cuts lines to limit unless expanded, and reports whether the
// body is long enough to need a More/Less toggle.
func collapseBody(lines []string, limit int, expanded bool) ([]string, bool) {
	if limit <= 0 || len(lines) <= limit+overflowThreshold {
		return lines, false
	}
	if expanded {
		return lines, true
	}
	return lines[:limit], true
}

func userOf(thread *threading.Thread) string {
	if thread == nil || thread.Annotation == nil {
		return ""
	}
	return thread.Annotation.User
}

func relativeTime(ts time.Time, now time.Time) string {
	if ts.IsZero() {
		return "now"
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	delta := now.Sub(ts)
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta < time.Minute:
		return "just now"
	case delta < time.Hour:
		return fmt.Sprintf("%dm ago", int(delta.Minutes()))
	case delta < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(delta.Hours()))
	case delta < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(delta.Hours()/24))
	default:
		return ts.Format("2 Jan 2006")
	}
}
