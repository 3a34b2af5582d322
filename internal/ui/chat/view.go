// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/adk"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/components"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat. Widget mode draws a bordered box in the bottom
// right corner of the terminal.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	w, _ := m.frameSize()
	var body string
	if m.showHelp {
		body = m.renderHelp(w)
	} else {
		body = m.renderChat(w)
	}

	if m.state.Mode == model.ChatModeWidget {
		box := m.theme.Widget.Render(body)
		return lipgloss.Place(m.width, m.height, lipgloss.Right, lipgloss.Bottom, box)
	}
	return m.theme.App.Render(body)
}

func (m Model) renderChat(width int) string {
	sections := []string{m.renderHeader(width)}
	if banner := m.renderBanner(width); banner != "" {
		sections = append(sections, banner)
	}
	sections = append(sections,
		m.viewport.View(),
		m.renderNotice(width),
		m.theme.InputContainer.Width(width).Render(m.renderInput()),
		m.renderStatusBar(width),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader(width int) string {
	h := components.NewHeader(m.theme)
	h.SetWidth(width)
	h.Title = m.state.Title
	h.AppName = m.state.Config.AppName
	h.SessionID = m.state.Config.SessionID
	h.ResponseMode = string(m.state.Config.ResponseMode)
	h.Connection = components.ConnectionFromState(m.state.IsConnecting, m.state.IsConnected)
	return h.View()
}

func (m Model) renderBanner(width int) string {
	b := components.NewErrorBanner(m.state.Error, m.theme)
	b.Width = width
	return b.View()
}

// renderNotice shows the spinner while waiting, else the newest toast.
func (m Model) renderNotice(width int) string {
	if m.spinner.Active() {
		return m.spinner.View()
	}
	toasts := m.toasts.Toasts()
	if len(toasts) == 0 {
		return ""
	}
	return components.RenderToasts(toasts[len(toasts)-1:], width)
}

// renderInput dims the input while a send is in flight; Enter is refused
// until it finishes.
func (m Model) renderInput() string {
	if m.state.Busy() {
		return m.theme.InputDisabled.Render(m.input.View())
	}
	return m.input.View()
}

func (m Model) renderStatusBar(width int) string {
	s := components.NewStatusBar(m.theme, adk.MaxMessageLength)
	s.Width = width
	s.InputLen = m.input.Length()
	s.Busy = m.state.Busy()
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		s.Shortcuts = append(s.Shortcuts, components.Shortcut{Key: h.Key, Desc: h.Desc})
	}
	return s.View()
}

// renderConversation renders the messages, or a hint when there are none.
func (m Model) renderConversation(width int) string {
	if len(m.state.Messages) == 0 {
		hint := "Send a message to start chatting"
		if app := m.state.Config.AppName; app != "" {
			hint += " with " + app
		}
		return m.theme.EmptyState.Width(width).Render(hint)
	}
	return components.RenderConversation(m.state.Messages, width, m.showTimestamps, m.markdown, m.theme)
}

// renderHelp lists the key bindings and slash commands.
func (m Model) renderHelp(width int) string {
	var sb strings.Builder
	sb.WriteString(m.theme.HeaderTitle.Render("Keys"))
	sb.WriteString("\n")
	for _, group := range m.keys.FullHelp() {
		for _, b := range group {
			h := b.Help()
			sb.WriteString("  " + m.theme.ShortcutKey.Render(util.PadRight(h.Key, 10)+" ") + m.theme.ShortcutDesc.Render(h.Desc) + "\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(m.theme.HeaderTitle.Render("Commands"))
	sb.WriteString("\n")
	for _, c := range Commands() {
		sb.WriteString("  " + m.theme.ShortcutKey.Render(util.PadRight(c.Usage, 28)+" ") + m.theme.ShortcutDesc.Render(c.Desc) + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.theme.ShortcutDesc.Render("Esc or F1 to close"))

	return m.theme.HelpBox.Width(max(width-2, 20)).Render(sb.String())
}
