// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for adkchat.
//
// Supports TOML, YAML and JSON configuration formats, with sensible defaults,
// .env files, environment variable overrides, validation, and live reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: ADK server URL and the app/user/session identity
//   - ChatSettings: Response mode, display mode, title and send limits
//   - TransportConfig: Timeouts and retry policy for the HTTP client
//   - ValidateErrors: Every validation problem found in one error
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (ADK_*, ADKCHAT_*), including .env files
//   - ~/.adkchat/config.toml
//   - ~/.adkchat/config.yaml
//   - ~/.adkchat/config.json
//   - Built-in defaults
//
// ADKCHAT_HOME moves the configuration directory.
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Follow edits while running:
//
//	go config.Watch(ctx, path, func(c *config.Config) {
//	    component.OnPropsChanged(ctx, prev, propsFrom(c))
//	}, config.WatchOptions{})
package config
