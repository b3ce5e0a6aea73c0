package styles

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/require"
)

func TestLookupFallsBackToDefault(t *testing.T) {
	require.Equal(t, "high-contrast", Lookup("high-contrast").Name)
	require.Equal(t, DefaultTheme.Name, Lookup("matrix").Name)
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"acct:alice@example.com": "alice",
		"bob":                    "bob",
		"  ":                     "unknown",
		"acct:":                  "unknown",
	}
	for in, want := range tests {
		require.Equal(t, want, DisplayName(in), in)
	}
}

func TestUserColorsAreStable(t *testing.T) {
	m := NewUserColorMapper(nil)
	code := m.ColorCode("acct:alice@example.com")
	require.Equal(t, code, m.ColorCode("ALICE"))
	require.Contains(t, UserColorPalette, code)

	custom := NewUserColorMapper([]string{"42"})
	require.Equal(t, "42", custom.ColorCode("anyone"))
}

func TestRenderQuoteCapsLines(t *testing.T) {
	s := NewCardStyles(DefaultTheme, nil)
	require.Nil(t, s.RenderQuote("   ", 20, 3))

	lines := s.RenderQuote(strings.Repeat("quoted text ", 20), 20, 3)
	require.Len(t, lines, 3)
	require.Contains(t, lines[2], "…")
	for _, line := range lines {
		require.True(t, strings.Contains(line, "▎"))
	}
}

func TestRenderTagChipsOverflow(t *testing.T) {
	s := NewCardStyles(DefaultTheme, nil)
	require.Empty(t, s.RenderTagChips(nil, 40))

	all := s.RenderTagChips([]string{"go", "tui"}, 40)
	require.Contains(t, all, "[go]")
	require.Contains(t, all, "[tui]")

	cut := s.RenderTagChips([]string{"alpha", "beta", "gamma", "delta"}, 18)
	require.Contains(t, cut, "[alpha]")
	require.Contains(t, cut, "+")
	require.NotContains(t, cut, "[delta]")
}

func TestTruncateWidth(t *testing.T) {
	require.Equal(t, "", TruncateWidth("abc", 0))
	require.Equal(t, "abc", TruncateWidth("abc", 3))
	got := TruncateWidth("日本語のテキスト", 7)
	require.LessOrEqual(t, runewidth.StringWidth(got), 7)
	require.True(t, strings.HasSuffix(got, "…"))
}
