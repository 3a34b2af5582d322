// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the terminal chat view for adkchat.

The view is a Bubble Tea model over a mounted lifecycle.ChatComponent. It
never talks to the network itself: input goes to ChatComponent.Send and
everything shown comes from store snapshots, delivered through a store
subscription as StateMsg values.

# Key Components

## Model (model.go)

Holds the latest store snapshot, the viewport, the textarea input and the
spinner. Widget mode shrinks the chat into a box in the corner of the
terminal; fullscreen uses the whole window.

## Update Loop (update.go)

  - Enter sends, Alt+Enter inserts a newline
  - Sending is refused while a reply is loading or streaming
  - Esc dismisses the error banner
  - Ctrl+Y copies the last reply, Ctrl+W toggles widget mode
  - Ctrl+R resolves the session again

## Commands (commands.go)

  - /help - Keys and commands
  - /clear - Clear the conversation
  - /mode [widget|fullscreen] - Display mode
  - /response [stream|standard] - Response mode
  - /apps - Apps known to the server
  - /reconnect, /copy, /quit

# Usage

	component := lifecycle.NewChatComponent(st, client)
	_ = component.OnMount(ctx, props)
	defer component.OnUnmount()

	m := chat.New(component, chat.Options{Theme: styles.NewTheme("auto")})
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
*/
package chat
