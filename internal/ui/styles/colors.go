// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Violet - Primary accent, assistant bubbles and the title
var Violet = lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#A78BFA"}

// Sky - Secondary accent, user highlights and key hints
var Sky = lipgloss.AdaptiveColor{Light: "#0369A1", Dark: "#38BDF8"}

// =============================================================================
// STATUS COLORS
// =============================================================================

// Green - Connected, success
var Green = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}

// Yellow - Connecting, warnings
var Yellow = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FACC15"}

// Red - Disconnected, errors
var Red = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}

// RedDeep - Error banner background
var RedDeep = lipgloss.AdaptiveColor{Light: "#FEE2E2", Dark: "#450A0A"}

// Blue - Informational notices
var Blue = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}

// =============================================================================
// SURFACES AND TEXT
// =============================================================================

var (
	Surface    = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1A1B26"}
	SurfaceDim = lipgloss.AdaptiveColor{Light: "#F3F4F6", Dark: "#16161E"}
	Border     = lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#3B4261"}

	TextPrimary   = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#C0CAF5"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#A9B1D6"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#565F89"}
	TextInverse   = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1A1B26"}
)

// =============================================================================
// MESSAGE BUBBLES
// =============================================================================

var (
	UserBubbleFg     = lipgloss.AdaptiveColor{Light: "#0C4A6E", Dark: "#E0F2FE"}
	UserBubbleBorder = lipgloss.AdaptiveColor{Light: "#0EA5E9", Dark: "#0284C7"}

	AssistantBubbleFg     = lipgloss.AdaptiveColor{Light: "#3B0764", Dark: "#EDE9FE"}
	AssistantBubbleBorder = lipgloss.AdaptiveColor{Light: "#C4B5FD", Dark: "#7C3AED"}
)

// =============================================================================
// ACCESSIBILITY
// =============================================================================

// StatusIndicatorSet contains text markers shown next to status colors so
// that state is readable without color.
type StatusIndicatorSet struct {
	Success string
	Error   string
	Warning string
	Info    string
	Pending string
	Active  string
}

// StatusIndicators are ASCII-only for terminal compatibility.
var StatusIndicators = StatusIndicatorSet{
	Success: "[OK]",
	Error:   "[X]",
	Warning: "[!]",
	Info:    "[i]",
	Pending: "[ ]",
	Active:  "[*]",
}

// RenderSuccess renders message in green with the success marker.
func RenderSuccess(message string) string {
	return lipgloss.NewStyle().Foreground(Green).Bold(true).
		Render(StatusIndicators.Success + " " + message)
}

// RenderError renders message in red with the error marker.
func RenderError(message string) string {
	return lipgloss.NewStyle().Foreground(Red).Bold(true).
		Render(StatusIndicators.Error + " " + message)
}

// RenderWarning renders message in yellow with the warning marker.
func RenderWarning(message string) string {
	return lipgloss.NewStyle().Foreground(Yellow).Bold(true).
		Render(StatusIndicators.Warning + " " + message)
}

// RenderInfo renders message in blue with the info marker.
func RenderInfo(message string) string {
	return lipgloss.NewStyle().Foreground(Blue).
		Render(StatusIndicators.Info + " " + message)
}

// RenderStatus picks RenderSuccess or RenderError.
func RenderStatus(success bool, message string) string {
	if success {
		return RenderSuccess(message)
	}
	return RenderError(message)
}
