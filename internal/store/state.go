// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
)

// State is a snapshot of the store. Snapshots are deep copies and may be
// kept and read freely.
type State struct {
	Messages    []model.Message
	IsLoading   bool
	IsStreaming bool
	IsConnected bool

	// IsConnecting is true while a session is being resolved.
	IsConnecting bool

	// Error is the dismissible error banner text; empty means none.
	Error string

	Mode   model.ChatMode
	Title  string
	Config model.ChatConfig

	// Version increases by one with every mutation.
	Version uint64
}

// Busy reports whether a send is in progress. The send affordance is
// disabled while busy.
func (s State) Busy() bool {
	return s.IsLoading || s.IsStreaming
}

// ConnectionStatus returns the header indicator text.
func (s State) ConnectionStatus() string {
	switch {
	case s.IsConnecting:
		return "Connecting"
	case s.IsConnected:
		return "Connected"
	default:
		return "Disconnected"
	}
}

// HasError reports whether an error is being shown.
func (s State) HasError() bool {
	return s.Error != ""
}

// Message returns the message with the given id.
func (s State) Message(id string) (model.Message, bool) {
	for _, m := range s.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

// LastAssistant returns the most recent assistant message.
func (s State) LastAssistant() (model.Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == model.RoleAssistant {
			return s.Messages[i], true
		}
	}
	return model.Message{}, false
}

// StreamingCount returns how many messages are still streaming.
func (s State) StreamingCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.IsStreaming {
			n++
		}
	}
	return n
}

func (s State) clone() State {
	c := s
	c.Messages = append([]model.Message(nil), s.Messages...)
	return c
}

func initialState(cfg model.ChatConfig) State {
	return State{
		Messages: []model.Message{},
		Mode:     model.ChatModeFullscreen,
		Title:    model.DefaultTitle,
		Config:   cfg,
	}
}
