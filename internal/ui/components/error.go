// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/styles"
)

// =============================================================================
// ERROR BANNER
// =============================================================================

// ErrorBanner shows the current error until it is dismissed.
type ErrorBanner struct {
	Message string
	Width   int
	theme   *styles.Theme
}

// NewErrorBanner creates a banner for message.
func NewErrorBanner(message string, theme *styles.Theme) *ErrorBanner {
	return &ErrorBanner{Message: message, Width: 80, theme: theme}
}

// Visible reports whether there is anything to show.
func (e *ErrorBanner) Visible() bool {
	return strings.TrimSpace(e.Message) != ""
}

// View renders the banner, or "" when there is no message.
func (e *ErrorBanner) View() string {
	if !e.Visible() {
		return ""
	}
	width := e.Width
	if width < 20 {
		width = 20
	}
	inner := width - e.theme.ErrorBanner.GetHorizontalFrameSize()

	title := e.theme.ErrorTitle.Render(styles.StatusIndicators.Error + " Error")
	body := wrapText(e.Message, inner)
	lines := []string{title + " " + body}
	if hint := Suggestion(e.Message); hint != "" {
		lines = append(lines, e.theme.ErrorHint.Render(hint))
	}
	lines = append(lines, e.theme.ErrorHint.Render("Esc to dismiss"))
	return e.theme.ErrorBanner.Width(width).Render(strings.Join(lines, "\n"))
}

// suggestionRules map error text to a next step. First match wins.
var suggestionRules = []struct {
	needle string
	hint   string
}{
	{"failed to connect", "Check that the ADK server is running, then press Ctrl+R to reconnect."},
	{"connection refused", "Check that the ADK server is running, then press Ctrl+R to reconnect."},
	{"timed out", "The server is slow to answer. Try again in a moment."},
	{"rate limit", "Too many messages. Wait a little before sending again."},
	{"too many requests", "Too many messages. Wait a little before sending again."},
	{"session not found", "Press Ctrl+R to create the session again."},
	{"app not found", "Use /apps to list the agents the server knows."},
}

// Suggestion returns a hint for a known error, or "".
func Suggestion(message string) string {
	lower := strings.ToLower(message)
	for _, r := range suggestionRules {
		if strings.Contains(lower, r.needle) {
			return r.hint
		}
	}
	return ""
}
