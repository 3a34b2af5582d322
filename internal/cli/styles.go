// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared lipgloss styles for the adkchat commands.
//
// Colors follow the terminal: they are dropped for piped output and when
// NO_COLOR is set, and forced on with FORCE_COLOR.
package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// STYLES
// =============================================================================

var (
	// TitleStyle is used for banners and command titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	// SectionStyle heads a group of lines.
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			MarginTop(1)

	// LabelStyle is the left column of key/value output.
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(20)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	// DimStyle is for hints and secondary details.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	HighlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	// PromptStyle colors the chat REPL prompt.
	PromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	// CommandStyle renders slash command names in help output.
	CommandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75"))

	// SummaryStyle is the closing line of a chat session.
	SummaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)
)

// =============================================================================
// HELPERS
// =============================================================================

// RenderSeparator draws a horizontal rule, 60 columns unless width is given.
func RenderSeparator(width ...int) string {
	w := 60
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("-", w))
}

// RenderStatus renders a bracketed status marker: ok, fail, warn or any
// other word in dim brackets.
func RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "ok", "success", "up":
		return SuccessStyle.Render("[OK]")
	case "fail", "error", "down":
		return ErrorStyle.Render("[FAIL]")
	case "warn", "warning":
		return WarningStyle.Render("[WARN]")
	default:
		return DimStyle.Render("[" + strings.ToUpper(status) + "]")
	}
}

// RenderLabel renders a label padded to width, or 20 columns by default.
func RenderLabel(label string, width ...int) string {
	if len(width) > 0 && width[0] > 0 {
		return LabelStyle.Copy().Width(width[0]).Render(label)
	}
	return LabelStyle.Render(label)
}
