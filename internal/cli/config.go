// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command: show, get, set, keys and path.
//
// Examples:
//
//	adkchat config                          Show the effective config
//	adkchat config show --json
//	adkchat config get server.app_name
//	adkchat config set chat.response_mode standard
//	adkchat config set transport.max_retries 5
//	adkchat config path
package cli

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/config"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/components"
)

func newConfigCmd(a *App) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long: `View and modify the adkchat configuration.

"show" prints the effective config: file, environment and flags merged.
"set" edits the config file only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.showConfig(cmd.OutOrStdout(), jsonOut)
		},
	}
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.showConfig(cmd.OutOrStdout(), jsonOut)
		},
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.cfg.Get(args[0])
			if err != nil {
				return unknownKey(args[0], err)
			}
			if jsonOut {
				return NewJSONResponse("config get", map[string]interface{}{"key": args[0], "value": v}).Write(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.setConfig(cmd.OutOrStdout(), args[0], args[1])
		},
	}

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List configuration keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			all := config.GetAllKeys()
			if jsonOut {
				return NewJSONResponse("config keys", all).Write(out)
			}
			for _, k := range all {
				fmt.Fprintln(out, k)
			}
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.cfgPath)
			return nil
		},
	}

	cmd.AddCommand(show, get, set, keys, path)
	return cmd
}

func (a *App) showConfig(out io.Writer, jsonOut bool) error {
	if jsonOut {
		return NewJSONResponse("config show", a.cfg).Write(out)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(a.cfg); err != nil {
		return NewCommandError("config", "show", "cannot encode config", err)
	}
	fmt.Fprintf(out, "%s %s\n\n", DimStyle.Render("#"), DimStyle.Render(a.cfgPath))
	text := buf.String()
	if ColorsEnabled() {
		text = components.Highlight(text, "toml")
	}
	fmt.Fprintln(out, strings.TrimRight(text, "\n"))
	return nil
}

// setConfig edits the config file at a.cfgPath, keeping its format.
func (a *App) setConfig(out io.Writer, key, value string) error {
	cfg, err := config.ReadFile(a.cfgPath)
	if err != nil {
		return NewCommandError("config", "set", "cannot read "+a.cfgPath, err)
	}
	if err := cfg.Set(key, value); err != nil {
		return unknownKey(key, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTo(cfg, a.cfgPath); err != nil {
		return NewCommandError("config", "set", "cannot save "+a.cfgPath, err)
	}
	fmt.Fprintf(out, "%s %s = %s\n", RenderStatus("ok"), key, value)
	return nil
}

func unknownKey(key string, err error) error {
	return NewValidationErrorWithExample("key", key, err.Error(), "adkchat config keys")
}
