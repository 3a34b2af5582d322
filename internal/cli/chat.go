// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-based interactive chat for adkchat.
//
// USABILITY: Arrow-key history and line editing through liner; history is
// kept in the config directory.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/adk"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/config"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/export"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/lifecycle"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/store"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor with history loaded from historyFile.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{line: line, historyFile: historyFile}
	c.LoadHistory()
	return c
}

// historyPath returns the chat history file, falling back to the temp dir.
func historyPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chat_history")
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with the given prompt. Non-blank lines are added
// to the history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes the history file.
// SECURITY: 0600, messages may be private.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// chatSession is one interactive chat run.
type chatSession struct {
	app      *App
	out      io.Writer
	client   *adk.Client
	comp     *lifecycle.ChatComponent
	store    *store.Store
	markdown bool

	sent    int
	started time.Time
}

func newChatCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive line chat with history",
		Long: `Chat with the agent one line at a time. Up and down arrows walk the
input history. Type /help for commands; Ctrl+C during a reply cancels it,
Ctrl+C or Ctrl+D at the prompt exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runChat(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (a *App) runChat(ctx context.Context, out io.Writer) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}
	s, err := a.newChatSession(ctx, out)
	if err != nil {
		return err
	}
	defer s.comp.OnUnmount()

	s.printBanner(ctx)

	input := NewChatCLI(historyPath())
	defer input.Close()

	for {
		line, err := input.ReadInput(PromptStyle.Render("adkchat> "))
		if err != nil {
			// liner.ErrPromptAborted on Ctrl+C, io.EOF on Ctrl+D.
			fmt.Fprintln(out)
			s.printSummary()
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			keepGoing, err := s.handleSlashCommand(ctx, line)
			if err != nil {
				fmt.Fprintf(out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				s.printSummary()
				return nil
			}
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			s.printSummary()
			return nil
		}

		if err := s.send(ctx, line); err != nil {
			fmt.Fprintf(out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			if hint := Suggestion(err); hint != "" {
				fmt.Fprintln(out, DimStyle.Render("  "+hint))
			}
		}
	}
}

// newChatSession mounts a component and waits for the session.
func (a *App) newChatSession(ctx context.Context, out io.Writer) (*chatSession, error) {
	client, err := a.newClient()
	if err != nil {
		return nil, err
	}
	st, err := a.openStore(true)
	if err != nil {
		return nil, err
	}
	comp := lifecycle.NewChatComponent(st, client,
		lifecycle.WithLogger(a.logger),
		lifecycle.WithOrchestratorOptions(a.orchestratorOptions()...),
	)
	if err := comp.OnMount(ctx, a.propsFor(a.cfg)); err != nil {
		return nil, err
	}
	return &chatSession{
		app:      a,
		out:      out,
		client:   client,
		comp:     comp,
		store:    st,
		markdown: a.cfg.UI.RenderMarkdown,
		started:  time.Now(),
	}, nil
}

// resolve waits for the session. A failure is printed, not returned, so
// the user can fix the config and /reconnect.
func (s *chatSession) resolve(ctx context.Context) bool {
	orch := s.comp.Orchestrator()
	if orch == nil {
		return false
	}
	if err := orch.ResolveSession(ctx); err != nil {
		fmt.Fprintf(s.out, "%s %s\n", RenderStatus("fail"), s.store.Snapshot().Error)
		return false
	}
	return true
}

// send delivers one message. Ctrl+C while waiting cancels only this send.
func (s *chatSession) send(ctx context.Context, text string) error {
	orch := s.comp.Orchestrator()
	if orch == nil {
		return lifecycle.ErrNotMounted
	}
	if !s.store.Snapshot().IsConnected && !s.resolve(ctx) {
		return errors.New("not connected (try /reconnect)")
	}

	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	before := s.store.Snapshot()
	var printer *replyPrinter
	if before.Config.ResponseMode == model.ResponseModeStream {
		printer = newReplyPrinter(s.out, before)
		defer s.store.Subscribe(printer.onState)()
	}

	err := orch.Send(sendCtx, text)
	last, ok := s.store.Snapshot().LastAssistant()
	if prev, had := before.LastAssistant(); !ok || (had && prev.ID == last.ID) {
		// Refused before anything was recorded: busy or rate limited.
		return err
	}
	s.sent++

	if printer != nil {
		printer.finish(last.Content)
	} else {
		displayReply(s.out, last.Content, s.markdown)
	}
	if sendCtx.Err() != nil && ctx.Err() == nil {
		s.store.ClearError()
		return errors.New("cancelled")
	}
	return err
}

func (s *chatSession) printBanner(ctx context.Context) {
	snap := s.store.Snapshot()
	cfg := snap.Config
	fmt.Fprintln(s.out, TitleStyle.Render(snap.Title))
	fmt.Fprintln(s.out, RenderSeparator(48))
	fmt.Fprintf(s.out, "%s%s\n", RenderLabel("Server:", 12), ValueStyle.Render(cfg.APIBaseURL))
	fmt.Fprintf(s.out, "%s%s\n", RenderLabel("App:", 12), ValueStyle.Render(cfg.AppName))
	fmt.Fprintf(s.out, "%s%s / %s\n", RenderLabel("Session:", 12), cfg.UserID, cfg.SessionID)
	fmt.Fprintf(s.out, "%s%s\n", RenderLabel("Replies:", 12), cfg.ResponseMode)
	if s.resolve(ctx) {
		fmt.Fprintf(s.out, "%s Connected\n", RenderStatus("ok"))
	}
	fmt.Fprintln(s.out, DimStyle.Render("Type /help for commands, /quit to exit."))
	fmt.Fprintln(s.out)
}

func (s *chatSession) printSummary() {
	elapsed := time.Since(s.started).Round(time.Second)
	fmt.Fprintln(s.out, SummaryStyle.Render(fmt.Sprintf("%d message(s) sent in %s", s.sent, elapsed)))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// replCommand is a slash command of the line chat. run reports whether the
// chat continues.
type replCommand struct {
	Usage string
	Desc  string
	run   func(s *chatSession, ctx context.Context, args []string) (bool, error)
}

var replCommands map[string]replCommand

func init() {
	replCommands = map[string]replCommand{
		"help":      {"/help", "Show commands", (*chatSession).cmdHelp},
		"clear":     {"/clear", "Clear the conversation", (*chatSession).cmdClear},
		"config":    {"/config", "Show the active configuration", (*chatSession).cmdConfig},
		"mode":      {"/mode [widget|fullscreen]", "Show or set the saved display mode", (*chatSession).cmdMode},
		"response":  {"/response [stream|standard]", "Show or set the response mode", (*chatSession).cmdResponse},
		"apps":      {"/apps", "List apps on the server", (*chatSession).cmdApps},
		"health":    {"/health", "Check the server", (*chatSession).cmdHealth},
		"export":    {"/export [markdown|json] [path]", "Save the conversation to a file", (*chatSession).cmdExport},
		"reconnect": {"/reconnect", "Resolve the session again", (*chatSession).cmdReconnect},
		"quit":      {"/quit", "Exit", (*chatSession).cmdQuit},
	}
}

var replAliases = map[string]string{"h": "help", "?": "help", "c": "clear", "q": "quit", "exit": "quit", "r": "reconnect"}

func (s *chatSession) handleSlashCommand(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return true, nil
	}
	name := strings.ToLower(fields[0])
	if alias, ok := replAliases[name]; ok {
		name = alias
	}
	cmd, ok := replCommands[name]
	if !ok {
		return true, fmt.Errorf("unknown command /%s (try /help)", name)
	}
	return cmd.run(s, ctx, fields[1:])
}

func (s *chatSession) cmdHelp(context.Context, []string) (bool, error) {
	names := make([]string, 0, len(replCommands))
	for name := range replCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(s.out, SectionStyle.Render("Commands"))
	for _, name := range names {
		c := replCommands[name]
		fmt.Fprintf(s.out, "  %s %s\n", CommandStyle.Render(fmt.Sprintf("%-28s", c.Usage)), DimStyle.Render(c.Desc))
	}
	return true, nil
}

func (s *chatSession) cmdClear(context.Context, []string) (bool, error) {
	s.store.ClearMessages()
	fmt.Fprintln(s.out, DimStyle.Render("Conversation cleared."))
	return true, nil
}

func (s *chatSession) cmdConfig(context.Context, []string) (bool, error) {
	snap := s.store.Snapshot()
	cfg := snap.Config
	rows := [][2]string{
		{"api_url", cfg.APIBaseURL},
		{"app_name", cfg.AppName},
		{"user_id", cfg.UserID},
		{"session_id", cfg.SessionID},
		{"response_mode", string(cfg.ResponseMode)},
		{"mode", string(snap.Mode)},
		{"title", snap.Title},
		{"status", snap.ConnectionStatus()},
	}
	for _, r := range rows {
		fmt.Fprintf(s.out, "  %s%s\n", RenderLabel(r[0], 16), ValueStyle.Render(r[1]))
	}
	return true, nil
}

func (s *chatSession) cmdMode(_ context.Context, args []string) (bool, error) {
	if len(args) == 0 {
		fmt.Fprintf(s.out, "Display mode: %s\n", s.store.Snapshot().Mode)
		return true, nil
	}
	mode := model.ChatMode(strings.ToLower(args[0]))
	if !mode.Valid() {
		return true, NewValidationErrorWithExample("mode", args[0], "unknown display mode", "/mode widget")
	}
	s.store.SetMode(mode)
	fmt.Fprintf(s.out, "Display mode: %s\n", mode)
	return true, nil
}

func (s *chatSession) cmdResponse(ctx context.Context, args []string) (bool, error) {
	if len(args) == 0 {
		fmt.Fprintf(s.out, "Response mode: %s\n", s.store.Config().ResponseMode)
		return true, nil
	}
	rm := model.ResponseMode(strings.ToLower(args[0]))
	if !rm.Valid() {
		return true, NewValidationErrorWithExample("response mode", args[0], "unknown response mode", "/response standard")
	}
	prev := s.comp.Props()
	next := prev
	next.ResponseMode = rm
	if err := s.comp.OnPropsChanged(ctx, prev, next); err != nil {
		return true, err
	}
	fmt.Fprintf(s.out, "Response mode: %s\n", rm)
	return true, nil
}

func (s *chatSession) cmdApps(ctx context.Context, _ []string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.app.cfg.Timeout())
	defer cancel()
	apps, err := s.client.ListApps(ctx, s.store.Config())
	if err != nil {
		return true, err
	}
	printApps(s.out, apps, s.store.Config().AppName)
	return true, nil
}

func (s *chatSession) cmdHealth(ctx context.Context, _ []string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.app.cfg.Timeout())
	defer cancel()
	cfg := s.store.Config()
	printHealth(s.out, cfg.APIBaseURL, s.client.HealthCheck(ctx, cfg))
	return true, nil
}

func (s *chatSession) cmdExport(_ context.Context, args []string) (bool, error) {
	format, path := "", ""
	if len(args) > 0 {
		format = args[0]
	}
	if len(args) > 1 {
		path = args[1]
	}
	exp, err := export.ForFormat(format, nil)
	if err != nil {
		return true, NewValidationErrorWithExample("format", format, err.Error(), "/export markdown")
	}
	snap := s.store.Snapshot()
	written, err := export.ToFile(export.NewTranscript(snap.Title, snap.Config, snap.Messages), exp, path, nil)
	if err != nil {
		return true, err
	}
	fmt.Fprintf(s.out, "%s Saved %s\n", RenderStatus("ok"), written)
	return true, nil
}

func (s *chatSession) cmdReconnect(ctx context.Context, _ []string) (bool, error) {
	orch := s.comp.Orchestrator()
	if orch == nil {
		return true, lifecycle.ErrNotMounted
	}
	orch.InvalidateSession()
	if s.resolve(ctx) {
		fmt.Fprintf(s.out, "%s Connected\n", RenderStatus("ok"))
	}
	return true, nil
}

func (s *chatSession) cmdQuit(context.Context, []string) (bool, error) {
	return false, nil
}
