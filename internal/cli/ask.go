// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot message command.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/adk"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/orchestrator"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/store"
)

// askOptions are the ask command flags.
type askOptions struct {
	JSON bool
	Raw  bool
}

// AskResult is the --json payload of ask.
type AskResult struct {
	Reply     string            `json:"reply"`
	AppName   string            `json:"app_name"`
	UserID    string            `json:"user_id"`
	SessionID string            `json:"session_id"`
	Mode      string            `json:"response_mode"`
	Events    []json.RawMessage `json:"events"`
}

func newAskCmd(a *App) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: "Send one message and print the reply",
		Long: `Send one message to the agent and print its reply.

The reply is rendered as markdown when stdout is a terminal. Use "-" as
the message to read it from stdin.`,
		Example: `  adkchat ask "What can you do?"
  echo "Summarize this" | adkchat ask -
  adkchat ask --json --response-mode standard "hello"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "-" {
				data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1<<20))
				if err != nil {
					return NewCommandError("ask", "read", "cannot read stdin", err)
				}
				text = string(data)
			}
			return a.runAsk(cmd.Context(), cmd.OutOrStdout(), text, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the reply and raw events as JSON")
	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "print the reply without markdown rendering")
	return cmd
}

func (a *App) runAsk(ctx context.Context, out io.Writer, text string, opts askOptions) error {
	clean, err := adk.PrepareMessage(text)
	if err != nil {
		return err
	}

	client, err := a.newClient()
	if err != nil {
		return err
	}
	st, err := a.openStore(false)
	if err != nil {
		return err
	}
	orch := orchestrator.New(st, client, a.orchestratorOptions()...)
	if err := orch.ResolveSession(ctx); err != nil {
		return err
	}

	if opts.JSON {
		return a.askJSON(ctx, out, client, st.Config(), clean)
	}

	cfg := st.Config()
	live := cfg.ResponseMode == model.ResponseModeStream && (opts.Raw || !IsStdoutTTY())
	var printer *replyPrinter
	if live {
		printer = newReplyPrinter(out, st.Snapshot())
		defer st.Subscribe(printer.onState)()
	}

	sendErr := orch.Send(ctx, clean)
	reply := ""
	if last, ok := st.Snapshot().LastAssistant(); ok {
		reply = last.Content
	}

	if reply == "" && sendErr != nil {
		return sendErr
	}
	switch {
	case printer != nil:
		printer.finish(reply)
	case opts.Raw || !IsStdoutTTY():
		fmt.Fprintln(out, reply)
	default:
		fmt.Fprint(out, renderMarkdown(reply))
	}
	return sendErr
}

// askJSON sends through the client directly so the raw events can be
// reported.
func (a *App) askJSON(ctx context.Context, out io.Writer, client *adk.Client, cfg model.ChatConfig, text string) error {
	var (
		events []adk.Event
		err    error
	)
	if cfg.ResponseMode == model.ResponseModeStandard {
		events, err = client.SendMessage(ctx, cfg, text)
	} else {
		err = client.SendMessageStreaming(ctx, cfg, text,
			func(ev adk.Event) { events = append(events, ev) },
			func(perr error) { a.logger.Debug("ask: skipped malformed event", "error", perr) },
		)
	}
	if err != nil {
		_ = NewJSONErrorResponse("ask", err).Write(out)
		return err
	}

	reply := adk.ExtractText(events)
	if cfg.ResponseMode != model.ResponseModeStandard {
		var sb strings.Builder
		for _, ev := range events {
			sb.WriteString(ev.Text())
		}
		reply = sb.String()
	}
	if reply == "" {
		reply = orchestrator.NoResponseText
	}

	result := AskResult{
		Reply:     reply,
		AppName:   cfg.AppName,
		UserID:    cfg.UserID,
		SessionID: cfg.SessionID,
		Mode:      string(cfg.ResponseMode),
		Events:    make([]json.RawMessage, 0, len(events)),
	}
	for _, ev := range events {
		result.Events = append(result.Events, ev.Raw)
	}
	return NewJSONResponse("ask", result).Write(out)
}

// =============================================================================
// STREAMED OUTPUT
// =============================================================================

// replyPrinter writes the assistant reply of one send while it streams.
type replyPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	skipID  string
	id      string
	printed string
}

// newReplyPrinter ignores the assistant message that was already last in
// before.
func newReplyPrinter(out io.Writer, before store.State) *replyPrinter {
	p := &replyPrinter{out: out}
	if last, ok := before.LastAssistant(); ok {
		p.skipID = last.ID
	}
	return p
}

// onState is a store listener.
func (p *replyPrinter) onState(s store.State) {
	last, ok := s.LastAssistant()
	if !ok || last.ID == p.skipID || !last.IsStreaming {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.id == "" {
		p.id = last.ID
	}
	if last.ID != p.id || !strings.HasPrefix(last.Content, p.printed) {
		return
	}
	fmt.Fprint(p.out, last.Content[len(p.printed):])
	p.printed = last.Content
}

// finish prints what the final reply adds to the streamed text and ends
// the line. A final reply that replaced the streamed text goes on its own
// line.
func (p *replyPrinter) finish(final string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.printed == "":
		fmt.Fprintln(p.out, final)
	case strings.HasPrefix(final, p.printed):
		fmt.Fprintln(p.out, final[len(p.printed):])
	default:
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, final)
	}
	p.printed = ""
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var (
	markdownOnce     sync.Once
	markdownRenderer *glamour.TermRenderer
)

// renderMarkdown renders a reply for the terminal. It returns the content
// unchanged when the renderer is unavailable or fails.
func renderMarkdown(content string) string {
	markdownOnce.Do(func() {
		width := GetTerminalWidth()
		if width > 100 {
			width = 100
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width-4),
		)
		if err == nil {
			markdownRenderer = r
		}
	})
	if markdownRenderer == nil || strings.TrimSpace(content) == "" {
		return content + "\n"
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content + "\n"
	}
	return rendered
}

// displayReply prints a finished reply, rendered on a terminal.
func displayReply(out io.Writer, reply string, markdown bool) {
	if markdown && IsStdoutTTY() {
		fmt.Fprint(out, renderMarkdown(reply))
		return
	}
	fmt.Fprintln(out, reply)
}
