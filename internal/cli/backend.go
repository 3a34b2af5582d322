// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// backend.go - Server inspection commands: apps, health and session.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/adk"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
)

// =============================================================================
// APPS
// =============================================================================

func newAppsCmd(a *App) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List the agent apps served by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return OutputJSON(out, jsonOut, "apps", func() (interface{}, error) {
				apps, err := a.listApps(cmd.Context())
				if err != nil {
					return nil, err
				}
				if !jsonOut {
					printApps(out, apps, a.cfg.Server.AppName)
				}
				return apps, nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func (a *App) listApps(ctx context.Context) ([]string, error) {
	client, err := a.newClient()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout())
	defer cancel()
	return client.ListApps(ctx, a.cfg.ChatConfig())
}

// printApps lists apps one per line and marks the configured one.
func printApps(out io.Writer, apps []string, current string) {
	if len(apps) == 0 {
		fmt.Fprintln(out, DimStyle.Render("The server reports no apps."))
		return
	}
	for _, app := range apps {
		if app == current {
			fmt.Fprintf(out, "  %s %s\n", HighlightStyle.Render(app), DimStyle.Render("(configured)"))
			continue
		}
		fmt.Fprintf(out, "  %s\n", app)
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// HealthResult is the --json payload of health.
type HealthResult struct {
	URL     string `json:"url"`
	Healthy bool   `json:"healthy"`
	Latency string `json:"latency"`
}

func newHealthCmd(a *App) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the server answers",
		Long:  "Check that the ADK server answers. Exits non-zero when it does not.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return OutputJSON(out, jsonOut, "health", func() (interface{}, error) {
				res, err := a.checkHealth(cmd.Context())
				if err != nil {
					return nil, err
				}
				if !jsonOut {
					printHealth(out, res.URL, res.Healthy)
				}
				if !res.Healthy {
					return res, NewCommandError("health", "check", "server unreachable at "+res.URL, nil)
				}
				return res, nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func (a *App) checkHealth(ctx context.Context) (HealthResult, error) {
	client, err := a.newClient()
	if err != nil {
		return HealthResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout())
	defer cancel()

	start := time.Now()
	ok := client.HealthCheck(ctx, a.cfg.ChatConfig())
	return HealthResult{
		URL:     client.BaseURL(),
		Healthy: ok,
		Latency: time.Since(start).Round(time.Millisecond).String(),
	}, nil
}

func printHealth(out io.Writer, url string, healthy bool) {
	if healthy {
		fmt.Fprintf(out, "%s %s is up\n", RenderStatus("ok"), url)
		return
	}
	fmt.Fprintf(out, "%s %s is not responding\n", RenderStatus("fail"), url)
}

// =============================================================================
// SESSION
// =============================================================================

// SessionInfo summarizes a session for display.
type SessionInfo struct {
	ID          string         `json:"id"`
	AppName     string         `json:"app_name"`
	UserID      string         `json:"user_id"`
	Events      int            `json:"events"`
	LastUpdated string         `json:"last_updated,omitempty"`
	State       map[string]any `json:"state,omitempty"`
}

func sessionInfo(s *model.Session) SessionInfo {
	info := SessionInfo{
		ID:      s.ID,
		AppName: s.AppName,
		UserID:  s.UserID,
		Events:  s.EventCount(),
		State:   s.State,
	}
	if t := s.LastUpdated(); !t.IsZero() {
		info.LastUpdated = t.Format(time.RFC3339)
	}
	return info
}

func newSessionCmd(a *App) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Inspect or create the configured session",
	}
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")

	get := &cobra.Command{
		Use:   "get",
		Short: "Fetch the configured session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return OutputJSON(out, jsonOut, "session get", func() (interface{}, error) {
				client, err := a.newClient()
				if err != nil {
					return nil, err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout())
				defer cancel()
				sess, err := client.GetSession(ctx, a.cfg.ChatConfig())
				if errors.Is(err, adk.ErrNotFound) {
					return nil, NewNotFoundError("session", a.cfg.Server.SessionID)
				}
				if err != nil {
					return nil, err
				}
				info := sessionInfo(sess)
				if !jsonOut {
					printSession(out, info)
				}
				return info, nil
			})
		},
	}

	var stateArgs []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create the configured session",
		Example: `  adkchat session create
  adkchat session create --session-id demo --state topic=billing`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := parseState(stateArgs)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return OutputJSON(out, jsonOut, "session create", func() (interface{}, error) {
				client, err := a.newClient()
				if err != nil {
					return nil, err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout())
				defer cancel()
				sess, err := client.CreateSession(ctx, a.cfg.ChatConfig(), state)
				if err != nil {
					return nil, err
				}
				info := sessionInfo(sess)
				if !jsonOut {
					fmt.Fprintf(out, "%s Session created\n", RenderStatus("ok"))
					printSession(out, info)
				}
				return info, nil
			})
		},
	}
	create.Flags().StringArrayVar(&stateArgs, "state", nil, "initial state entry as key=value (repeatable)")

	cmd.AddCommand(get, create)
	return cmd
}

// parseState turns key=value pairs into a state map.
func parseState(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	state := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, ErrInvalidFormat("state", p, "key=value")
		}
		state[k] = v
	}
	return state, nil
}

func printSession(out io.Writer, info SessionInfo) {
	fmt.Fprintf(out, "  %s%s\n", RenderLabel("ID:", 14), ValueStyle.Render(info.ID))
	fmt.Fprintf(out, "  %s%s\n", RenderLabel("App:", 14), ValueStyle.Render(info.AppName))
	fmt.Fprintf(out, "  %s%s\n", RenderLabel("User:", 14), ValueStyle.Render(info.UserID))
	fmt.Fprintf(out, "  %s%d\n", RenderLabel("Events:", 14), info.Events)
	if info.LastUpdated != "" {
		fmt.Fprintf(out, "  %s%s\n", RenderLabel("Updated:", 14), info.LastUpdated)
	}
	for k, v := range info.State {
		fmt.Fprintf(out, "  %s%v\n", RenderLabel("state."+k, 14), v)
	}
}
