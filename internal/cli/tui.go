// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Full-screen chat command.
package cli

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/config"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/lifecycle"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/chat"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/styles"
)

func newTUICmd(a *App) *cobra.Command {
	var widget bool
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the full-screen chat (default)",
		Long: `Open the chat in the terminal. Logs go to the log file in the config
directory while the chat owns the screen.

Edits to the config file are picked up while the chat runs; a new app,
user or session starts a fresh conversation.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotLogToFile: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context(), widget)
		},
	}
	cmd.Flags().BoolVarP(&widget, "widget", "w", false, "start in the compact widget layout")
	return cmd
}

// runTUI mounts a chat component, runs the bubbletea program and unmounts
// on exit.
func (a *App) runTUI(ctx context.Context, widget bool) error {
	if err := RequiresTTY("open the chat"); err != nil {
		return err
	}

	client, err := a.newClient()
	if err != nil {
		return err
	}
	st, err := a.openStore(true)
	if err != nil {
		return err
	}

	comp := lifecycle.NewChatComponent(st, client,
		lifecycle.WithLogger(a.logger),
		lifecycle.WithOrchestratorOptions(a.orchestratorOptions()...),
	)
	props := a.tuiProps(a.cfg, widget)
	if err := comp.OnMount(ctx, props); err != nil {
		return NewCommandError("tui", "mount", "cannot start chat", err)
	}
	defer comp.OnUnmount()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go a.watchConfig(watchCtx, comp, widget)

	m := chat.New(comp, chat.Options{
		Theme:          styles.NewTheme(a.cfg.UI.Theme),
		ShowTimestamps: a.cfg.UI.ShowTimestamps,
		RenderMarkdown: a.cfg.UI.RenderMarkdown,
		Context:        ctx,
		Logger:         a.logger,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return NewCommandError("tui", "run", "terminal UI failed", err)
	}
	return nil
}

func (a *App) tuiProps(cfg *config.Config, widget bool) lifecycle.Props {
	props := a.propsFor(cfg)
	if widget {
		props.Mode = model.ChatModeWidget
	}
	return props
}

// watchConfig forwards config file edits to the mounted component until
// ctx is done.
func (a *App) watchConfig(ctx context.Context, comp *lifecycle.ChatComponent, widget bool) {
	if a.cfgPath == "" {
		return
	}
	onChange := func(cfg *config.Config) {
		if err := a.applyFlags(cfg); err != nil {
			a.logger.Warn("ignoring config change", "error", err)
			return
		}
		next := a.tuiProps(cfg, widget)
		if err := comp.OnPropsChanged(ctx, comp.Props(), next); err != nil && !errors.Is(err, lifecycle.ErrNotMounted) {
			a.logger.Warn("config change not applied", "error", err)
		}
	}
	if err := config.Watch(ctx, a.cfgPath, onChange, config.WatchOptions{Logger: a.logger}); err != nil {
		a.logger.Warn("config watch disabled", "path", a.cfgPath, "error", err)
	}
}
