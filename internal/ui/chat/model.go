// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/adk"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/lifecycle"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/store"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/components"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/styles"
)

// Widget mode draws the chat in a box of at most this size.
const (
	WidgetWidth  = 64
	WidgetHeight = 26
)

// appsTimeout bounds the /apps request.
const appsTimeout = 10 * time.Second

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the chat model.
type Options struct {
	// Theme defaults to the auto theme.
	Theme *styles.Theme

	ShowTimestamps bool
	RenderMarkdown bool

	// Clipboard writes copied replies. Defaults to the system clipboard.
	Clipboard func(string) error

	// Context bounds background commands such as /apps.
	Context context.Context

	// ExportDir receives /export files. Defaults to the working directory.
	ExportDir string

	Logger *slog.Logger
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view. It renders store
// snapshots and sends user input through the mounted component.
type Model struct {
	component *lifecycle.ChatComponent
	store     *store.Store
	feed      *stateFeed
	state     store.State

	ctx       context.Context
	clipboard func(string) error
	exportDir string
	logger    *slog.Logger

	// Styling
	theme    *styles.Theme
	keys     KeyMap
	markdown *components.MarkdownRenderer

	// UI components
	viewport viewport.Model
	input    textarea.Model
	spinner  components.Spinner
	toasts   *components.ToastManager

	// Dimensions of the whole terminal
	width  int
	height int
	ready  bool

	showTimestamps bool
	showHelp       bool

	// renderedVersion is the store version last written to the viewport.
	renderedVersion uint64
	renderedWidth   int
}

// New creates a chat model over a component. The component is mounted and
// unmounted by the caller.
func New(component *lifecycle.ChatComponent, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ThemeAuto)
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	copyFn := opts.Clipboard
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = adk.MaxMessageLength
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	var md *components.MarkdownRenderer
	if opts.RenderMarkdown {
		md = components.NewMarkdownRenderer(theme.GlamourStyle())
	}

	st := component.Store()
	return Model{
		component:      component,
		store:          st,
		feed:           newStateFeed(st),
		state:          st.Snapshot(),
		ctx:            ctx,
		clipboard:      copyFn,
		exportDir:      opts.ExportDir,
		logger:         logger,
		theme:          theme,
		keys:           DefaultKeyMap(),
		markdown:       md,
		viewport:       viewport.New(80, 20),
		input:          ta,
		spinner:        components.NewSpinner(theme),
		toasts:         components.NewToastManager(),
		showTimestamps: opts.ShowTimestamps,
	}
}

// Init starts the cursor blink and the state feed.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.feed.wait())
}

// Close stops the state feed. Call it after the program exits.
func (m Model) Close() {
	m.feed.close()
}

// State returns the snapshot the model last rendered.
func (m Model) State() store.State {
	return m.state
}

// InputValue returns the current input text.
func (m Model) InputValue() string {
	return m.input.Value()
}

// ShowingHelp reports whether the help overlay is open.
func (m Model) ShowingHelp() bool {
	return m.showHelp
}

// =============================================================================
// LAYOUT
// =============================================================================

// frameSize returns the size available to the chat. Widget mode uses a
// box in the corner of the terminal.
func (m Model) frameSize() (int, int) {
	w, h := m.width, m.height
	if m.state.Mode == model.ChatModeWidget {
		frame := m.theme.Widget.GetHorizontalFrameSize()
		w = min(w, WidgetWidth) - frame
		h = min(h, WidgetHeight) - m.theme.Widget.GetVerticalFrameSize()
	}
	return max(w, 20), max(h, 8)
}

// layout sizes the viewport and input for the current state.
func (m *Model) layout() {
	w, h := m.frameSize()
	m.theme.SetSize(w, h)
	m.input.SetWidth(w - 2)

	used := 1 + // header
		1 + // status bar
		1 + // spinner / toast line
		m.input.Height() + m.theme.InputContainer.GetVerticalFrameSize()
	if banner := m.renderBanner(w); banner != "" {
		used += lipgloss.Height(banner)
	}

	m.viewport.Width = w
	m.viewport.Height = max(h-used, 1)
}

// refreshViewport re-renders the conversation when the store or the width
// changed. It keeps following the bottom unless the user scrolled up.
func (m *Model) refreshViewport() {
	if m.renderedVersion == m.state.Version && m.renderedWidth == m.viewport.Width && m.renderedVersion != 0 {
		return
	}
	follow := m.viewport.AtBottom() || m.renderedVersion == 0
	m.viewport.SetContent(m.renderConversation(m.viewport.Width))
	if follow {
		m.viewport.GotoBottom()
	}
	m.renderedVersion = m.state.Version
	m.renderedWidth = m.viewport.Width
}
