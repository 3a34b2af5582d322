// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the ADK chat client.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Content is mutable only while IsStreaming is true. Once a message has been
// finalized the orchestrator never patches it again.
type Message struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	IsStreaming bool      `json:"is_streaming,omitempty"`
}

// MessagePatch is a partial update for a message. Nil fields are left alone.
type MessagePatch struct {
	Content     *string
	IsStreaming *bool
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantPlaceholder creates the empty assistant message that is filled
// in while a response arrives.
func NewAssistantPlaceholder() Message {
	msg := NewMessage(RoleAssistant, "")
	msg.IsStreaming = true
	return msg
}

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// Apply merges a patch into the message.
func (m *Message) Apply(p MessagePatch) {
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.IsStreaming != nil {
		m.IsStreaming = *p.IsStreaming
	}
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// FormattedTime returns the message time as HH:MM.
func (m Message) FormattedTime() string {
	if m.Timestamp.IsZero() {
		return "--:--"
	}
	return m.Timestamp.Format("15:04")
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// String returns a pointer to s. Used to build patches.
func String(s string) *string { return &s }

// Bool returns a pointer to b. Used to build patches.
func Bool(b bool) *bool { return &b }
