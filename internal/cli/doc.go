// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the adkchat command tree.
//
// Commands are built with cobra and share one App, which loads the config,
// applies the global flags and builds the logger before any command runs.
//
// # Commands
//
//   - tui (default): full-screen chat, optionally in the widget layout
//   - chat: line-based chat with history and slash commands
//   - ask: one message, reply on stdout; --json includes raw events
//   - apps, health, session: inspect the ADK server
//   - config: show, get and set configuration values
//   - serve-mock: local echo server speaking the ADK HTTP API
//
// # Usage
//
//	func main() {
//	    cli.Execute()
//	}
//
// Errors are printed once by Execute with a hint when one is known, and
// mapped to exit codes by GetExitCode.
package cli
