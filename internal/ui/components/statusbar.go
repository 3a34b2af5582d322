// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/styles"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Shortcut is a key hint shown in the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar is the bottom line: input length, busy state and key hints.
type StatusBar struct {
	Width     int
	InputLen  int
	MaxInput  int
	Busy      bool
	Shortcuts []Shortcut
	theme     *styles.Theme
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme, maxInput int) *StatusBar {
	return &StatusBar{Width: 80, MaxInput: maxInput, theme: theme}
}

// View renders the bar. Shortcuts are dropped from the right when space
// runs out.
func (s *StatusBar) View() string {
	width := s.Width
	if width < 20 {
		width = 20
	}
	inner := width - s.theme.StatusBar.GetHorizontalFrameSize()

	left := s.renderCount()
	if s.Busy {
		left += "  " + s.theme.Connecting.Render("sending")
	}

	shortcuts := s.Shortcuts
	right := s.renderShortcuts(shortcuts)
	for len(shortcuts) > 0 && lipgloss.Width(left)+lipgloss.Width(right)+1 > inner {
		shortcuts = shortcuts[:len(shortcuts)-1]
		right = s.renderShortcuts(shortcuts)
	}

	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return s.theme.StatusBar.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

// renderCount shows "used/max", yellow past 80% and red at the limit.
func (s *StatusBar) renderCount() string {
	text := formatCount(s.InputLen) + "/" + formatCount(s.MaxInput)
	switch {
	case s.MaxInput > 0 && s.InputLen >= s.MaxInput:
		return s.theme.CharCountDanger.Render(text)
	case s.MaxInput > 0 && s.InputLen*5 >= s.MaxInput*4:
		return s.theme.CharCountWarning.Render(text)
	default:
		return s.theme.CharCount.Render(text)
	}
}

func (s *StatusBar) renderShortcuts(list []Shortcut) string {
	parts := make([]string, 0, len(list))
	for _, sc := range list {
		parts = append(parts, s.theme.ShortcutKey.Render(sc.Key)+" "+s.theme.ShortcutDesc.Render(sc.Desc))
	}
	return strings.Join(parts, "  ")
}
