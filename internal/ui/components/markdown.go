// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// MarkdownRenderer renders assistant replies with glamour. Renderers are
// built lazily per wrap width and reused.
type MarkdownRenderer struct {
	style string

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

// NewMarkdownRenderer creates a renderer using a glamour standard style
// ("dark", "light", "notty", ...).
func NewMarkdownRenderer(style string) *MarkdownRenderer {
	if style == "" {
		style = "dark"
	}
	return &MarkdownRenderer{
		style:     style,
		renderers: make(map[int]*glamour.TermRenderer),
	}
}

// Render renders content wrapped at width. It returns content unchanged if
// rendering fails. A nil renderer returns content as is.
func (r *MarkdownRenderer) Render(content string, width int) string {
	if r == nil || strings.TrimSpace(content) == "" {
		return content
	}
	if width < 20 {
		width = 20
	}

	tr, err := r.renderer(width)
	if err != nil {
		return content
	}
	out, err := tr.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

func (r *MarkdownRenderer) renderer(width int) (*glamour.TermRenderer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tr, ok := r.renderers[width]; ok {
		return tr, nil
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	// PERFORMANCE: resizes produce a handful of widths; drop them all if
	// the terminal is dragged around a lot.
	if len(r.renderers) > 8 {
		r.renderers = make(map[int]*glamour.TermRenderer)
	}
	r.renderers[width] = tr
	return tr, nil
}
