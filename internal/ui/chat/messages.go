// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/store"
)

// =============================================================================
// MESSAGES
// =============================================================================

// StateMsg carries a store snapshot into the update loop.
type StateMsg struct {
	State store.State
}

// AppsMsg is the result of an app listing.
type AppsMsg struct {
	Apps []string
	Err  error
}

// CopiedMsg is the result of copying a reply to the clipboard.
type CopiedMsg struct {
	Chars int
	Err   error
}

// feedClosedMsg is returned once the state feed has been closed.
type feedClosedMsg struct{}

// =============================================================================
// STATE FEED
// =============================================================================

// stateFeed turns store notifications into bubbletea messages. It holds at
// most one pending snapshot; a newer snapshot replaces an unread one.
type stateFeed struct {
	ch          chan store.State
	done        chan struct{}
	once        sync.Once
	unsubscribe func()
}

func newStateFeed(st *store.Store) *stateFeed {
	f := &stateFeed{
		ch:   make(chan store.State, 1),
		done: make(chan struct{}),
	}
	f.unsubscribe = st.Subscribe(f.push)
	return f
}

func (f *stateFeed) push(s store.State) {
	for {
		select {
		case <-f.done:
			return
		case f.ch <- s:
			return
		default:
		}
		// Drop the unread snapshot unless it is newer.
		select {
		case old := <-f.ch:
			if old.Version > s.Version {
				s = old
			}
		default:
		}
	}
}

// wait returns a command that delivers the next snapshot.
func (f *stateFeed) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-f.ch:
			return StateMsg{State: s}
		case <-f.done:
			return feedClosedMsg{}
		}
	}
}

func (f *stateFeed) close() {
	f.once.Do(func() {
		f.unsubscribe()
		close(f.done)
	})
}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// AppLister lists agent applications. *orchestrator.Orchestrator
// satisfies it.
type AppLister interface {
	ListApps(ctx context.Context) ([]string, error)
}

// ListAppsCmd fetches the app list with a timeout.
func ListAppsCmd(ctx context.Context, lister AppLister, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		apps, err := lister.ListApps(ctx)
		return AppsMsg{Apps: apps, Err: err}
	}
}

// CopyCmd writes text to the clipboard.
func CopyCmd(write func(string) error, text string) tea.Cmd {
	return func() tea.Msg {
		return CopiedMsg{Chars: len([]rune(text)), Err: write(text)}
	}
}
