// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/styles"
)

// =============================================================================
// TOAST NOTICES
// =============================================================================

// DefaultToastTTL is how long a toast stays visible.
const DefaultToastTTL = 4 * time.Second

// ToastKind selects the color and marker of a toast.
type ToastKind int

const (
	ToastInfo ToastKind = iota
	ToastSuccess
	ToastWarning
)

// Toast is a short notice that expires on its own, such as "Copied".
type Toast struct {
	Kind      ToastKind
	Message   string
	CreatedAt time.Time
	TTL       time.Duration
}

// Expired reports whether the toast should no longer be shown at now.
func (t Toast) Expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.TTL
}

// ToastManager keeps the visible toasts, newest last. It is owned by the
// bubbletea model and not safe for concurrent use.
type ToastManager struct {
	toasts []Toast
	max    int
	now    func() time.Time
}

// NewToastManager keeps at most three toasts.
func NewToastManager() *ToastManager {
	return &ToastManager{max: 3, now: time.Now}
}

// Add shows a toast with the default TTL.
func (m *ToastManager) Add(kind ToastKind, message string) {
	m.toasts = append(m.toasts, Toast{
		Kind:      kind,
		Message:   message,
		CreatedAt: m.now(),
		TTL:       DefaultToastTTL,
	})
	if len(m.toasts) > m.max {
		m.toasts = m.toasts[len(m.toasts)-m.max:]
	}
}

// Prune drops expired toasts and reports whether any remain.
func (m *ToastManager) Prune() bool {
	now := m.now()
	kept := m.toasts[:0]
	for _, t := range m.toasts {
		if !t.Expired(now) {
			kept = append(kept, t)
		}
	}
	m.toasts = kept
	return len(m.toasts) > 0
}

// Toasts returns the visible toasts.
func (m *ToastManager) Toasts() []Toast {
	return append([]Toast(nil), m.toasts...)
}

// ToastTickMsg asks the model to prune expired toasts.
type ToastTickMsg struct{}

// ToastTickCmd schedules the next prune.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return ToastTickMsg{}
	})
}

// RenderToasts renders the toasts right aligned, one per line.
func RenderToasts(toasts []Toast, width int) string {
	if len(toasts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(toasts))
	for _, t := range toasts {
		var color lipgloss.AdaptiveColor
		var marker string
		switch t.Kind {
		case ToastSuccess:
			color, marker = styles.Green, styles.StatusIndicators.Success
		case ToastWarning:
			color, marker = styles.Yellow, styles.StatusIndicators.Warning
		default:
			color, marker = styles.Blue, styles.StatusIndicators.Info
		}
		text := lipgloss.NewStyle().Foreground(color).Render(marker + " " + t.Message)
		lines = append(lines, alignRight(text, width))
	}
	return strings.Join(lines, "\n")
}
