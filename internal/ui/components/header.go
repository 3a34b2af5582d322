// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/styles"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/util"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Connection is the connection indicator shown in the header.
type Connection int

const (
	Disconnected Connection = iota
	Connecting
	Connected
)

// String returns the display text for the indicator.
func (c Connection) String() string {
	switch c {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Disconnected"
	}
}

// ConnectionFromState maps store flags to an indicator. Connecting wins.
func ConnectionFromState(connecting, connected bool) Connection {
	switch {
	case connecting:
		return Connecting
	case connected:
		return Connected
	default:
		return Disconnected
	}
}

// Header is the title bar: title on the left, connection and session
// details on the right.
type Header struct {
	Title        string
	AppName      string
	SessionID    string
	ResponseMode string
	Connection   Connection
	Width        int
	theme        *styles.Theme
}

// NewHeader creates a header with an 80 column width.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{Width: 80, theme: theme}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// View renders the header on one line. On narrow terminals the session
// details are dropped before the connection indicator.
func (h *Header) View() string {
	width := h.Width
	if width < 20 {
		width = 20
	}
	inner := width - h.theme.Header.GetHorizontalFrameSize()

	title := h.theme.HeaderTitle.Render(util.TruncateWidth(h.Title, inner/2))
	status := h.renderConnection()

	right := status
	if h.theme.GetLayoutMode() != styles.LayoutNarrow {
		var meta []string
		if h.AppName != "" {
			meta = append(meta, h.AppName)
		}
		if h.SessionID != "" {
			meta = append(meta, h.SessionID)
		}
		if h.ResponseMode != "" {
			meta = append(meta, h.ResponseMode)
		}
		if len(meta) > 0 {
			right = h.theme.HeaderMeta.Render(strings.Join(meta, " | ")) + "  " + status
		}
	}

	gap := inner - lipgloss.Width(title) - lipgloss.Width(right)
	if gap < 1 {
		right = status
		gap = inner - lipgloss.Width(title) - lipgloss.Width(right)
		if gap < 1 {
			gap = 1
		}
	}

	line := title + strings.Repeat(" ", gap) + right
	return h.theme.Header.Width(width).Render(line)
}

func (h *Header) renderConnection() string {
	var style lipgloss.Style
	var marker string
	switch h.Connection {
	case Connected:
		style, marker = h.theme.Connected, styles.StatusIndicators.Active
	case Connecting:
		style, marker = h.theme.Connecting, styles.StatusIndicators.Pending
	default:
		style, marker = h.theme.Disconnected, styles.StatusIndicators.Error
	}
	return style.Render(marker + " " + h.Connection.String())
}
