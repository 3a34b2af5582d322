// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme holds every style the chat view renders with.
type Theme struct {
	Name         string
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// ==========================================================================
	// FRAME
	// ==========================================================================

	App    lipgloss.Style
	Widget lipgloss.Style

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header       lipgloss.Style
	HeaderTitle  lipgloss.Style
	HeaderMeta   lipgloss.Style
	Connected    lipgloss.Style
	Connecting   lipgloss.Style
	Disconnected lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	RoleLabel       lipgloss.Style
	Timestamp       lipgloss.Style
	StreamCursor    lipgloss.Style
	EmptyState      lipgloss.Style

	// ==========================================================================
	// INPUT
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputDisabled    lipgloss.Style
	CharCount        lipgloss.Style
	CharCountWarning lipgloss.Style
	CharCountDanger  lipgloss.Style

	// ==========================================================================
	// STATUS BAR, BANNERS
	// ==========================================================================

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	Spinner      lipgloss.Style
	Notice       lipgloss.Style

	ErrorBanner lipgloss.Style
	ErrorTitle  lipgloss.Style
	ErrorHint   lipgloss.Style

	HelpBox lipgloss.Style
}

// NewTheme creates a theme. name is "dark", "light" or "auto"; auto asks
// the terminal for its background.
func NewTheme(name string) *Theme {
	name = strings.ToLower(strings.TrimSpace(name))
	var isDark bool
	switch name {
	case ThemeDark:
		isDark = true
	case ThemeLight:
		isDark = false
	default:
		name = ThemeAuto
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		Name:         name,
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle()
	t.Widget = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Violet)

	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Violet)
	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.Connected = lipgloss.NewStyle().Foreground(Green)
	t.Connecting = lipgloss.NewStyle().Foreground(Yellow)
	t.Disconnected = lipgloss.NewStyle().Foreground(Red)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)
	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1)
	t.RoleLabel = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)
	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.StreamCursor = lipgloss.NewStyle().
		Foreground(Violet).
		Blink(true)
	t.EmptyState = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		Align(lipgloss.Center)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Border)
	t.InputDisabled = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.CharCount = lipgloss.NewStyle().Foreground(TextMuted)
	t.CharCountWarning = lipgloss.NewStyle().Foreground(Yellow)
	t.CharCountDanger = lipgloss.NewStyle().Foreground(Red).Bold(true)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Sky).
		Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.Spinner = lipgloss.NewStyle().Foreground(Violet)
	t.Notice = lipgloss.NewStyle().
		Foreground(Blue).
		Italic(true)

	t.ErrorBanner = lipgloss.NewStyle().
		Foreground(Red).
		Background(RedDeep).
		Padding(0, 1)
	t.ErrorTitle = lipgloss.NewStyle().
		Foreground(Red).
		Bold(true)
	t.ErrorHint = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.HelpBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Sky).
		Padding(0, 2)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // >= 100 columns
)

// GlamourStyle returns the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}
