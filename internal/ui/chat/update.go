// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/lifecycle"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/store"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/components"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles a message and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.refreshViewport()
		return m, nil

	case StateMsg:
		cmds = append(cmds, m.applyState(msg.State), m.feed.wait())
		return m, tea.Batch(cmds...)

	case feedClosedMsg:
		return m, nil

	case AppsMsg:
		return m.handleApps(msg)

	case CopiedMsg:
		if msg.Err != nil {
			return m, m.toast(components.ToastWarning, "Copy failed: "+msg.Err.Error())
		}
		return m, m.toast(components.ToastSuccess, fmt.Sprintf("Copied reply (%d chars)", msg.Chars))

	case components.ToastTickMsg:
		if m.toasts.Prune() {
			return m, components.ToastTickCmd()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if handled, next, cmd := m.handleKey(msg); handled {
			return next, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// applyState adopts a newer snapshot. Older snapshots are dropped.
func (m *Model) applyState(s store.State) tea.Cmd {
	if s.Version < m.state.Version {
		return nil
	}
	modeChanged := s.Mode != m.state.Mode
	errorChanged := s.Error != m.state.Error
	m.state = s

	if m.ready {
		if modeChanged || errorChanged {
			m.layout()
		}
		m.refreshViewport()
	}
	return m.syncSpinner()
}

// syncSpinner runs the spinner while a reply is pending and has no text.
func (m *Model) syncSpinner() tea.Cmd {
	waiting := m.state.IsConnecting
	if m.state.Busy() {
		waiting = true
		if last, ok := m.state.LastAssistant(); ok && last.Content != "" {
			waiting = false
		}
	}

	switch {
	case waiting && !m.spinner.Active():
		if m.state.IsConnecting && !m.state.Busy() {
			m.spinner.SetMessage("Connecting")
		} else {
			m.spinner.SetMessage("Thinking")
		}
		return m.spinner.Start()
	case !waiting && m.spinner.Active():
		m.spinner.Stop()
	}
	return nil
}

// handleKey processes chat-level bindings. Keys it does not claim go to
// the input.
func (m Model) handleKey(msg tea.KeyMsg) (bool, tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return true, m, tea.Quit

	case key.Matches(msg, m.keys.Dismiss):
		switch {
		case m.showHelp:
			m.showHelp = false
		case m.state.HasError():
			m.store.ClearError()
		}
		return true, m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return true, m, nil

	case key.Matches(msg, m.keys.Send):
		next, cmd := m.submit()
		return true, next, cmd

	case key.Matches(msg, m.keys.Copy):
		next, cmd := m.copyLastReply()
		return true, next, cmd

	case key.Matches(msg, m.keys.ToggleMode):
		m.store.SetMode(m.state.Mode.Toggle())
		return true, m, nil

	case key.Matches(msg, m.keys.Reconnect):
		return true, m, m.reconnect()

	case key.Matches(msg, m.keys.Clear):
		m.store.ClearMessages()
		return true, m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return true, m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return true, m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return true, m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return true, m, nil
	}
	return false, m, nil
}

// submit sends the input, or runs it as a slash command. Sending is
// refused while a previous message is still in flight.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}

	if isCommand(text) {
		m.input.Reset()
		return m.runCommand(text)
	}

	if m.state.Busy() {
		return m, m.toast(components.ToastWarning, "Wait for the current reply to finish")
	}

	if err := m.component.Send(text); err != nil {
		if errors.Is(err, lifecycle.ErrNotMounted) {
			return m, m.toast(components.ToastWarning, "Chat is not connected")
		}
		return m, m.toast(components.ToastWarning, err.Error())
	}
	m.input.Reset()
	return m, nil
}

func (m Model) copyLastReply() (tea.Model, tea.Cmd) {
	last, ok := m.state.LastAssistant()
	if !ok || last.IsStreaming || last.Content == "" {
		return m, m.toast(components.ToastInfo, "No reply to copy")
	}
	return m, CopyCmd(m.clipboard, last.Content)
}

func (m Model) reconnect() tea.Cmd {
	if err := m.component.Reconnect(); err != nil {
		return m.toast(components.ToastWarning, "Reconnect failed: "+err.Error())
	}
	return m.toast(components.ToastInfo, "Reconnecting...")
}

func (m Model) handleApps(msg AppsMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m, m.toast(components.ToastWarning, "Could not list apps: "+msg.Err.Error())
	}
	if len(msg.Apps) == 0 {
		return m, m.toast(components.ToastInfo, "The server reports no apps")
	}
	current := m.state.Config.AppName
	names := make([]string, len(msg.Apps))
	for i, app := range msg.Apps {
		names[i] = app
		if app == current {
			names[i] = app + " (current)"
		}
	}
	return m, m.toast(components.ToastInfo, "Apps: "+strings.Join(names, ", "))
}

// toast shows a notice and makes sure the prune tick is running.
func (m Model) toast(kind components.ToastKind, text string) tea.Cmd {
	running := len(m.toasts.Toasts()) > 0
	m.toasts.Add(kind, text)
	if running {
		return nil
	}
	return components.ToastTickCmd()
}
