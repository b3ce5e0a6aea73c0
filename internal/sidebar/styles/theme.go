package styles

import "github.com/charmbracelet/lipgloss"

// BaseColors defines global UI colors.
type BaseColors struct {
	Background string
	Foreground string
	Muted      string
	Accent     string
	Border     string
}

// CardColors defines colors for annotation card parts.
type CardColors struct {
	Quote     string
	QuoteBar  string
	Highlight string
	Tag       string
	TagText   string
	Draft     string
	Hidden    string
}

// ChromeColors defines non-content UI colors.
type ChromeColors struct {
	Header       string
	Footer       string
	Breadcrumb   string
	SelectedItem string
	FocusedItem  string
	Error        string
}

// BorderColors defines border colors for pane state.
type BorderColors struct {
	ActivePane   string
	InactivePane string
	Divider      string
}

// Theme defines the sidebar style tokens.
type Theme struct {
	Name        string
	BorderStyle string   // "rounded", "sharp", "double", "hidden"
	UserPalette []string // optional override for user identity colors (ANSI-256 codes)

	Base    BaseColors
	Card    CardColors
	Chrome  ChromeColors
	Borders BorderColors
}

// Themes lists available palettes by name.
var Themes = map[string]Theme{
	"default":       DefaultTheme,
	"high-contrast": HighContrastTheme,
}

// Lookup returns the named theme, falling back to the default.
func Lookup(name string) Theme {
	if theme, ok := Themes[name]; ok {
		return theme
	}
	return DefaultTheme
}

// BaseStyle renders plain content in the theme's colors.
func (t Theme) BaseStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Base.Foreground)).Background(lipgloss.Color(t.Base.Background))
}

// Muted renders secondary text.
func (t Theme) Muted() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Base.Muted))
}

// Accent renders emphasized text.
func (t Theme) Accent() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Base.Accent))
}

// ErrorStyle renders error lines.
func (t Theme) ErrorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Chrome.Error)).Bold(true)
}

// PanelStyle returns a focused/unfocused border style for panes.
func PanelStyle(theme Theme, focused bool) lipgloss.Style {
	color := theme.Borders.InactivePane
	if focused {
		color = theme.Borders.ActivePane
	}
	return lipgloss.NewStyle().
		BorderStyle(panelBorderStyle(theme)).
		BorderForeground(lipgloss.Color(color)).
		Padding(0, 1)
}

func panelBorderStyle(theme Theme) lipgloss.Border {
	switch theme.BorderStyle {
	case "double":
		return lipgloss.DoubleBorder()
	case "sharp":
		return lipgloss.NormalBorder()
	case "hidden":
		return lipgloss.HiddenBorder()
	default:
		return lipgloss.RoundedBorder()
	}
}
