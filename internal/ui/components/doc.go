// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the rendering pieces of the adkchat TUI.
//
// Components are plain structs with a View method; the chat model owns
// them and copies store state into them before rendering.
//
// # Key Types
//
//   - Header: title, session details and the connection indicator
//   - MessageBubble: one message with role label and HH:MM timestamp
//   - MarkdownRenderer: glamour rendering of finished assistant replies
//   - ErrorBanner: the dismissible error with a suggested next step
//   - StatusBar: input length against the message limit and key hints
//   - Spinner: "Thinking..." with elapsed time while a reply is pending
//   - ToastManager: short notices that expire on their own
//
// Highlight applies chroma syntax highlighting and is also used by the
// CLI to print configuration files.
//
// # Usage
//
//	h := components.NewHeader(theme)
//	h.Title = state.Title
//	h.Connection = components.ConnectionFromState(state.IsConnecting, state.IsConnected)
//	fmt.Println(h.View())
package components
