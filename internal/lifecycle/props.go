// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lifecycle

import (
	"strings"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/adk"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
)

// Attribute names accepted by PropsFromAttributes.
const (
	AttrAPIURL       = "api-url"
	AttrAppName      = "app-name"
	AttrUserID       = "user-id"
	AttrSessionID    = "session-id"
	AttrMode         = "mode"
	AttrResponseMode = "response-mode"
	AttrTitle        = "title"
)

// Props are the externally supplied settings of a chat component. Empty
// fields leave the current value alone.
type Props struct {
	APIURL       string
	AppName      string
	UserID       string
	SessionID    string
	Mode         model.ChatMode
	ResponseMode model.ResponseMode
	Title        string
}

// PropsFromAttributes builds Props from attribute-style key/value pairs.
// Unknown keys, non-http(s) URLs and invalid mode values are ignored.
func PropsFromAttributes(attrs map[string]string) Props {
	get := func(k string) string { return strings.TrimSpace(attrs[k]) }

	p := Props{
		APIURL:    adk.SanitizeURL(get(AttrAPIURL)),
		AppName:   get(AttrAppName),
		UserID:    get(AttrUserID),
		SessionID: get(AttrSessionID),
		Title:     get(AttrTitle),
	}
	if m := model.ChatMode(get(AttrMode)); m.Valid() {
		p.Mode = m
	}
	if rm := model.ResponseMode(get(AttrResponseMode)); rm.Valid() {
		p.ResponseMode = rm
	}
	return p
}

// ConfigPatch returns the configuration fields the props set.
func (p Props) ConfigPatch() model.ConfigPatch {
	var patch model.ConfigPatch
	if p.APIURL != "" {
		patch.APIBaseURL = model.String(p.APIURL)
	}
	if p.AppName != "" {
		patch.AppName = model.String(p.AppName)
	}
	if p.UserID != "" {
		patch.UserID = model.String(p.UserID)
	}
	if p.SessionID != "" {
		patch.SessionID = model.String(p.SessionID)
	}
	if p.ResponseMode != "" {
		rm := p.ResponseMode
		patch.ResponseMode = &rm
	}
	return patch
}

// configChanges reports whether applying p to cfg would change it, and
// whether the change touches the session identity.
func (p Props) configChanges(cfg model.ChatConfig) (changed, identity bool) {
	next := cfg.Merge(p.ConfigPatch())
	return next != cfg, cfg.IdentityChanged(next)
}
