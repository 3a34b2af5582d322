// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// =============================================================================
// MODES
// =============================================================================

// ResponseMode selects how assistant replies are delivered.
type ResponseMode string

const (
	// ResponseModeStream delivers the reply incrementally over SSE.
	ResponseModeStream ResponseMode = "stream"
	// ResponseModeStandard delivers the reply as a single batch of events.
	ResponseModeStandard ResponseMode = "standard"
)

// Valid reports whether the mode is one of the known values.
func (m ResponseMode) Valid() bool {
	return m == ResponseModeStream || m == ResponseModeStandard
}

// ChatMode is the display layout of the chat component.
type ChatMode string

const (
	ChatModeFullscreen ChatMode = "fullscreen"
	ChatModeWidget     ChatMode = "widget"
)

// Valid reports whether the mode is one of the known values.
func (m ChatMode) Valid() bool {
	return m == ChatModeFullscreen || m == ChatModeWidget
}

// Toggle returns the other layout.
func (m ChatMode) Toggle() ChatMode {
	if m == ChatModeFullscreen {
		return ChatModeWidget
	}
	return ChatModeFullscreen
}

// =============================================================================
// CHAT CONFIG
// =============================================================================

// Defaults used when nothing else is configured.
const (
	DefaultAPIBaseURL = "http://localhost:8000"
	DefaultAppName    = "my_sample_agent"
	DefaultUserID     = "user_123"
	DefaultSessionID  = "session_123"

	// DefaultTitle is shown in the chat header.
	DefaultTitle = "ADK Assistant"
)

// ChatConfig identifies the backend conversation the client talks to.
type ChatConfig struct {
	APIBaseURL   string       `json:"api_base_url" toml:"api_base_url" yaml:"api_base_url"`
	AppName      string       `json:"app_name" toml:"app_name" yaml:"app_name"`
	UserID       string       `json:"user_id" toml:"user_id" yaml:"user_id"`
	SessionID    string       `json:"session_id" toml:"session_id" yaml:"session_id"`
	ResponseMode ResponseMode `json:"response_mode" toml:"response_mode" yaml:"response_mode"`
}

// ConfigPatch is a partial ChatConfig. Nil fields keep their current value.
type ConfigPatch struct {
	APIBaseURL   *string
	AppName      *string
	UserID       *string
	SessionID    *string
	ResponseMode *ResponseMode
}

// DefaultChatConfig returns the built-in configuration.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		APIBaseURL:   DefaultAPIBaseURL,
		AppName:      DefaultAppName,
		UserID:       DefaultUserID,
		SessionID:    DefaultSessionID,
		ResponseMode: ResponseModeStream,
	}
}

// Merge returns a copy of c with the non-nil fields of p applied.
func (c ChatConfig) Merge(p ConfigPatch) ChatConfig {
	if p.APIBaseURL != nil {
		c.APIBaseURL = *p.APIBaseURL
	}
	if p.AppName != nil {
		c.AppName = *p.AppName
	}
	if p.UserID != nil {
		c.UserID = *p.UserID
	}
	if p.SessionID != nil {
		c.SessionID = *p.SessionID
	}
	if p.ResponseMode != nil {
		c.ResponseMode = *p.ResponseMode
	}
	return c
}

// IdentityChanged reports whether other addresses a different backend
// session than c. The response mode is not part of the identity.
func (c ChatConfig) IdentityChanged(other ChatConfig) bool {
	return c.APIBaseURL != other.APIBaseURL ||
		c.AppName != other.AppName ||
		c.UserID != other.UserID ||
		c.SessionID != other.SessionID
}

// SessionKey returns a stable key for the (app, user, session) triple.
func (c ChatConfig) SessionKey() string {
	return c.APIBaseURL + "|" + c.AppName + "|" + c.UserID + "|" + c.SessionID
}

// Validate checks that all identifiers are present and the base URL is an
// absolute http(s) URL.
func (c ChatConfig) Validate() error {
	var errs []error
	if _, err := ParseBaseURL(c.APIBaseURL); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.AppName) == "" {
		errs = append(errs, errors.New("app name is required"))
	}
	if strings.TrimSpace(c.UserID) == "" {
		errs = append(errs, errors.New("user id is required"))
	}
	if strings.TrimSpace(c.SessionID) == "" {
		errs = append(errs, errors.New("session id is required"))
	}
	if !c.ResponseMode.Valid() {
		errs = append(errs, fmt.Errorf("invalid response mode %q, must be stream or standard", c.ResponseMode))
	}
	return errors.Join(errs...)
}

// ParseBaseURL parses raw and only accepts http and https URLs with a host.
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return u, nil
}
