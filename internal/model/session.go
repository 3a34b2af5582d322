// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"time"
)

// Session is a backend-tracked conversational context keyed by the
// (app, user, session) identifiers. The server owns it; the client only
// caches the result of a get-or-create.
type Session struct {
	ID             string            `json:"id"`
	AppName        string            `json:"appName"`
	UserID         string            `json:"userId"`
	State          map[string]any    `json:"state"`
	Events         []json.RawMessage `json:"events"`
	LastUpdateTime float64           `json:"lastUpdateTime"`
}

// LastUpdated converts the server timestamp (seconds since epoch, possibly
// fractional) into a time.Time.
func (s *Session) LastUpdated() time.Time {
	if s == nil || s.LastUpdateTime <= 0 {
		return time.Time{}
	}
	sec := int64(s.LastUpdateTime)
	nsec := int64((s.LastUpdateTime - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// EventCount returns the number of events in the session history.
func (s *Session) EventCount() int {
	if s == nil {
		return 0
	}
	return len(s.Events)
}
