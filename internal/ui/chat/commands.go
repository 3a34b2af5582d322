// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/export"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/lifecycle"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/components"
)

// =============================================================================
// COMMAND HANDLER REGISTRY
// =============================================================================

// CommandHandler handles one slash command.
type CommandHandler func(m Model, args []string) (tea.Model, tea.Cmd)

// Command describes a slash command for /help.
type Command struct {
	Name    string
	Usage   string
	Desc    string
	Aliases []string
	Handler CommandHandler
}

var commandList = []Command{
	{Name: "help", Usage: "/help", Desc: "Show keys and commands", Aliases: []string{"h", "?"}, Handler: handleHelpCommand},
	{Name: "clear", Usage: "/clear", Desc: "Clear the conversation", Aliases: []string{"c"}, Handler: handleClearCommand},
	{Name: "mode", Usage: "/mode [widget|fullscreen]", Desc: "Switch display mode", Handler: handleModeCommand},
	{Name: "response", Usage: "/response [stream|standard]", Desc: "Switch response mode (clears the chat)", Handler: handleResponseCommand},
	{Name: "apps", Usage: "/apps", Desc: "List apps on the server", Handler: handleAppsCommand},
	{Name: "reconnect", Usage: "/reconnect", Desc: "Resolve the session again", Aliases: []string{"r"}, Handler: handleReconnectCommand},
	{Name: "copy", Usage: "/copy", Desc: "Copy the last reply", Handler: handleCopyCommand},
	{Name: "export", Usage: "/export [markdown|json] [path]", Desc: "Save the conversation to a file", Handler: handleExportCommand},
	{Name: "quit", Usage: "/quit", Desc: "Exit", Aliases: []string{"q", "exit"}, Handler: handleQuitCommand},
}

// commandHandlers maps names and aliases to handlers.
var commandHandlers = buildCommandHandlers()

func buildCommandHandlers() map[string]CommandHandler {
	handlers := make(map[string]CommandHandler)
	for _, c := range commandList {
		handlers[c.Name] = c.Handler
		for _, alias := range c.Aliases {
			handlers[alias] = c.Handler
		}
	}
	return handlers
}

// Commands returns the slash commands sorted by name.
func Commands() []Command {
	out := append([]Command(nil), commandList...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func isCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// runCommand dispatches "/name args...".
func (m Model) runCommand(text string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(text), "/"))
	if len(fields) == 0 {
		return m, nil
	}
	name := strings.ToLower(fields[0])
	handler, ok := commandHandlers[name]
	if !ok {
		return m, m.toast(components.ToastWarning, "Unknown command /"+name+" (try /help)")
	}
	return handler(m, fields[1:])
}

// =============================================================================
// HANDLERS
// =============================================================================

func handleHelpCommand(m Model, _ []string) (tea.Model, tea.Cmd) {
	m.showHelp = true
	return m, nil
}

func handleClearCommand(m Model, _ []string) (tea.Model, tea.Cmd) {
	m.store.ClearMessages()
	return m, nil
}

func handleModeCommand(m Model, args []string) (tea.Model, tea.Cmd) {
	mode := m.state.Mode.Toggle()
	if len(args) > 0 {
		mode = model.ChatMode(strings.ToLower(args[0]))
		if !mode.Valid() {
			return m, m.toast(components.ToastWarning, "Mode must be widget or fullscreen")
		}
	}
	m.store.SetMode(mode)
	return m, nil
}

func handleResponseCommand(m Model, args []string) (tea.Model, tea.Cmd) {
	current := m.state.Config.ResponseMode
	if len(args) == 0 {
		return m, m.toast(components.ToastInfo, "Response mode: "+string(current))
	}
	rm := model.ResponseMode(strings.ToLower(args[0]))
	if !rm.Valid() {
		return m, m.toast(components.ToastWarning, "Response mode must be stream or standard")
	}
	if rm == current {
		return m, nil
	}
	if m.state.Busy() {
		return m, m.toast(components.ToastWarning, "Wait for the current reply to finish")
	}

	prev := m.component.Props()
	next := prev
	next.ResponseMode = rm
	if err := m.component.OnPropsChanged(m.ctx, prev, next); err != nil {
		return m, m.toast(components.ToastWarning, err.Error())
	}
	return m, m.toast(components.ToastInfo, "Response mode: "+string(rm))
}

func handleAppsCommand(m Model, _ []string) (tea.Model, tea.Cmd) {
	orch := m.component.Orchestrator()
	if orch == nil {
		return m, m.toast(components.ToastWarning, lifecycle.ErrNotMounted.Error())
	}
	return m, ListAppsCmd(m.ctx, orch, appsTimeout)
}

func handleReconnectCommand(m Model, _ []string) (tea.Model, tea.Cmd) {
	return m, m.reconnect()
}

func handleCopyCommand(m Model, _ []string) (tea.Model, tea.Cmd) {
	return m.copyLastReply()
}

func handleExportCommand(m Model, args []string) (tea.Model, tea.Cmd) {
	format, path := "", ""
	if len(args) > 0 {
		format = args[0]
	}
	if len(args) > 1 {
		path = args[1]
	}
	opts := export.DefaultOptions()
	if m.exportDir != "" {
		opts.OutputDir = m.exportDir
	}
	opts.IncludeTimestamps = m.showTimestamps
	exp, err := export.ForFormat(format, opts)
	if err != nil {
		return m, m.toast(components.ToastWarning, err.Error())
	}
	t := export.NewTranscript(m.state.Title, m.state.Config, m.state.Messages)
	written, err := export.ToFile(t, exp, path, opts)
	if err != nil {
		m.logger.Warn("export failed", "error", err)
		return m, m.toast(components.ToastWarning, err.Error())
	}
	return m, m.toast(components.ToastSuccess, "Saved "+written)
}

func handleQuitCommand(m Model, _ []string) (tea.Model, tea.Cmd) {
	return m, tea.Quit
}
