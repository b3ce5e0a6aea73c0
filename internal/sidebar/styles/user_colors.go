package styles

import (
	"hash/fnv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// UserColorPalette is an ANSI 256 palette for stable author colors. Red and
// yellow are left out so they stay free for errors and highlights.
var UserColorPalette = []string{
	"33", "39", "45", "69", "75", "81", "87", "99",
	"111", "117", "123", "147", "153", "159", "183", "189",
}

// UserColorMapper resolves deterministic per-author styles and caches them.
type UserColorMapper struct {
	palette []string

	mu         sync.RWMutex
	fgCache    map[string]lipgloss.Style
	colorCache map[string]string
}

// NewUserColorMapper returns a mapper over palette, or the default palette
// when palette is empty.
func NewUserColorMapper(palette []string) *UserColorMapper {
	if len(palette) == 0 {
		palette = UserColorPalette
	}
	return &UserColorMapper{
		palette:    append([]string(nil), palette...),
		fgCache:    make(map[string]lipgloss.Style, 32),
		colorCache: make(map[string]string, 32),
	}
}

// Foreground returns a cached bold foreground style for user.
func (m *UserColorMapper) Foreground(user string) lipgloss.Style {
	key := normalizeUser(user)

	m.mu.RLock()
	if style, ok := m.fgCache[key]; ok {
		m.mu.RUnlock()
		return style
	}
	m.mu.RUnlock()

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.ColorCode(key))).Bold(true)

	m.mu.Lock()
	m.fgCache[key] = style
	m.mu.Unlock()
	return style
}

// ColorCode returns the ANSI-256 color code selected for user.
func (m *UserColorMapper) ColorCode(user string) string {
	key := normalizeUser(user)

	m.mu.RLock()
	if code, ok := m.colorCache[key]; ok {
		m.mu.RUnlock()
		return code
	}
	m.mu.RUnlock()

	code := m.palette[hashToPalette(key, len(m.palette))]

	m.mu.Lock()
	m.colorCache[key] = code
	m.mu.Unlock()
	return code
}

// DisplayName strips the account scheme and authority from a user id:
// "acct:alice@example.com" becomes "alice".
func DisplayName(user string) string {
	name := strings.TrimSpace(user)
	name = strings.TrimPrefix(name, "acct:")
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	if name == "" {
		return "unknown"
	}
	return name
}

func normalizeUser(user string) string {
	return strings.ToLower(DisplayName(user))
}

func hashToPalette(key string, n int) int {
	if n == 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
