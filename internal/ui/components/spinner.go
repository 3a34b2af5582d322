// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/styles"
)

// =============================================================================
// THINKING SPINNER
// =============================================================================

// Spinner shows an ASCII spinner with a message and elapsed time while a
// reply is pending.
type Spinner struct {
	spinner   spinner.Model
	message   string
	startTime time.Time
	active    bool
	theme     *styles.Theme
}

// NewSpinner creates an inactive spinner.
func NewSpinner(theme *styles.Theme) Spinner {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = theme.Spinner
	return Spinner{spinner: s, message: "Thinking", theme: theme}
}

// SetMessage sets the text next to the spinner.
func (s *Spinner) SetMessage(msg string) {
	s.message = msg
}

// Start activates the spinner. The returned command drives the animation.
func (s *Spinner) Start() tea.Cmd {
	if s.active {
		return nil
	}
	s.active = true
	s.startTime = time.Now()
	return s.spinner.Tick
}

// Stop deactivates the spinner.
func (s *Spinner) Stop() {
	s.active = false
}

// Active reports whether the spinner is running.
func (s Spinner) Active() bool {
	return s.active
}

// Update advances the animation. Ticks arriving while stopped end the
// tick loop.
func (s Spinner) Update(msg tea.Msg) (Spinner, tea.Cmd) {
	if !s.active {
		return s, nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return s, cmd
}

// View renders "| Thinking... (3s)", or "" when stopped.
func (s Spinner) View() string {
	if !s.active {
		return ""
	}
	elapsed := time.Since(s.startTime).Truncate(time.Second)
	return s.spinner.View() + " " +
		s.theme.ShortcutDesc.Render(fmt.Sprintf("%s... (%s)", s.message, formatElapsed(elapsed)))
}

func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
