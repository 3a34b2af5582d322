// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the ADK chat client.
//
// This package defines the core domain types used throughout the application
// for representing chat messages, the client configuration that identifies a
// backend conversation, and the session resource returned by the server.
//
// # Key Types
//
//   - Message: Single message with role, content, timestamp, and streaming flag
//   - MessagePatch: Partial update applied to a message by ID
//   - ChatConfig: Backend address, app/user/session identifiers, response mode
//   - ConfigPatch: Partial update merged into a ChatConfig
//   - Session: Server-owned session (identity, opaque state, event history)
//   - Role, ResponseMode, ChatMode: Small enumerations
//
// # Usage
//
// Create messages and apply patches:
//
//	msg := model.NewUserMessage("Hello!")
//	placeholder := model.NewAssistantPlaceholder()
//	placeholder.Apply(model.MessagePatch{Content: model.String("Hi")})
//
// Merge a config update:
//
//	cfg := model.DefaultChatConfig()
//	next := cfg.Merge(model.ConfigPatch{AppName: model.String("weather_agent")})
//	if cfg.IdentityChanged(next) {
//	    // the conversation belongs to a different backend session now
//	}
package model
