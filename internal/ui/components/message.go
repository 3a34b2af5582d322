// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/styles"
)

// =============================================================================
// MESSAGE BUBBLE COMPONENT
// =============================================================================

// TypingIndicator is shown in an assistant bubble that has no text yet.
const TypingIndicator = "..."

// StreamCursor trails the text of a streaming assistant message.
const StreamCursor = "_"

// MessageBubble renders one chat message.
type MessageBubble struct {
	Message       model.Message
	Width         int
	ShowTimestamp bool

	// Markdown renders assistant text once it has finished streaming.
	// Nil renders plain text.
	Markdown *MarkdownRenderer

	theme *styles.Theme
}

// NewMessageBubble creates a bubble with timestamps on.
func NewMessageBubble(msg model.Message, theme *styles.Theme) *MessageBubble {
	return &MessageBubble{
		Message:       msg,
		Width:         80,
		ShowTimestamp: true,
		theme:         theme,
	}
}

// View renders the label line and the bubble. User bubbles are right
// aligned, assistant bubbles left aligned.
func (b *MessageBubble) View() string {
	width := b.Width
	if width < 24 {
		width = 24
	}
	// Bubbles use at most 85% of the row.
	maxBubble := width * 85 / 100

	var style lipgloss.Style
	var body string
	switch b.Message.Role {
	case model.RoleUser:
		style = b.theme.UserBubble
		body = wrapText(b.Message.Content, maxBubble-style.GetHorizontalFrameSize())
	default:
		style = b.theme.AssistantBubble
		body = b.assistantBody(maxBubble - style.GetHorizontalFrameSize())
	}

	bubble := style.MaxWidth(maxBubble).Render(body)
	label := b.label()

	if b.Message.Role == model.RoleUser {
		return lipgloss.JoinVertical(lipgloss.Right,
			alignRight(label, width),
			alignRight(bubble, width),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, label, bubble)
}

func (b *MessageBubble) assistantBody(width int) string {
	content := b.Message.Content
	if b.Message.IsStreaming {
		if content == "" {
			return TypingIndicator
		}
		return wrapText(content, width) + b.theme.StreamCursor.Render(StreamCursor)
	}
	if b.Markdown != nil {
		return b.Markdown.Render(content, width)
	}
	return wrapText(content, width)
}

func (b *MessageBubble) label() string {
	parts := []string{b.theme.RoleLabel.Render(b.Message.Role.DisplayName())}
	if b.ShowTimestamp {
		parts = append(parts, b.theme.Timestamp.Render(b.Message.FormattedTime()))
	}
	return strings.Join(parts, " ")
}

// RenderConversation renders every message separated by a blank line.
func RenderConversation(msgs []model.Message, width int, showTimestamps bool, md *MarkdownRenderer, theme *styles.Theme) string {
	if len(msgs) == 0 {
		return ""
	}
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	var sb strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		bubble := NewMessageBubble(msg, theme)
		bubble.Width = width
		bubble.ShowTimestamp = showTimestamps
		bubble.Markdown = md
		sb.WriteString(bubble.View())
	}
	return sb.String()
}
