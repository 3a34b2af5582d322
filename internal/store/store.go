// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/prefs"
)

// PersistKey is the prefs key holding the persisted subset of the state.
const PersistKey = "adkchat.store"

// persisted is the durable subset of State.
type persisted struct {
	Config model.ChatConfig `json:"config"`
	Mode   model.ChatMode   `json:"mode"`
	Title  string           `json:"title,omitempty"`
}

// Listener receives a snapshot after every mutation.
type Listener func(State)

// Store is the conversation state container. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state State
	base  model.ChatConfig

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int

	kv     prefs.Store
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPersistence loads config, title and mode from kv at construction and
// saves them on every change.
func WithPersistence(kv prefs.Store) Option {
	return func(s *Store) { s.kv = kv }
}

// WithInitialConfig sets the configuration used before anything persisted
// is loaded and restored by Reset.
func WithInitialConfig(cfg model.ChatConfig) Option {
	return func(s *Store) { s.base = cfg }
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a store in its initial state.
func New(opts ...Option) *Store {
	s := &Store{
		base:      model.DefaultChatConfig(),
		listeners: make(map[int]Listener),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = initialState(s.base)
	s.load()
	return s
}

// =============================================================================
// READS
// =============================================================================

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Config returns the active configuration.
func (s *Store) Config() model.ChatConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Config
}

// =============================================================================
// MUTATIONS
// =============================================================================

// AppendMessage adds a message and returns it with its generated id.
func (s *Store) AppendMessage(role model.Role, content string, streaming bool) model.Message {
	msg := model.NewMessage(role, content)
	msg.IsStreaming = streaming
	s.mutate(func(st *State) bool {
		st.Messages = append(st.Messages, msg)
		return true
	})
	return msg
}

// UpdateMessage applies patch to the message with the given id. It returns
// false, and notifies nobody, when no such message exists.
func (s *Store) UpdateMessage(id string, patch model.MessagePatch) bool {
	found := false
	s.mutate(func(st *State) bool {
		for i := range st.Messages {
			if st.Messages[i].ID == id {
				// Copy-on-write so earlier snapshots keep their slice.
				msgs := append([]model.Message(nil), st.Messages...)
				msgs[i].Apply(patch)
				st.Messages = msgs
				found = true
				return true
			}
		}
		return false
	})
	return found
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(v bool) {
	s.mutate(func(st *State) bool { st.IsLoading = v; return true })
}

// SetStreaming sets the global streaming flag.
func (s *Store) SetStreaming(v bool) {
	s.mutate(func(st *State) bool { st.IsStreaming = v; return true })
}

// SetConnected sets the connection flag.
func (s *Store) SetConnected(v bool) {
	s.mutate(func(st *State) bool { st.IsConnected = v; return true })
}

// SetConnecting marks a session resolution as in progress.
func (s *Store) SetConnecting(v bool) {
	s.mutate(func(st *State) bool { st.IsConnecting = v; return true })
}

// SetError shows msg in the error banner. An empty msg clears it.
func (s *Store) SetError(msg string) {
	s.mutate(func(st *State) bool { st.Error = msg; return true })
}

// ClearError dismisses the error banner.
func (s *Store) ClearError() {
	s.SetError("")
}

// SetMode sets the display mode. Unknown modes are ignored.
func (s *Store) SetMode(mode model.ChatMode) {
	if !mode.Valid() {
		return
	}
	s.mutate(func(st *State) bool { st.Mode = mode; return true })
	s.save()
}

// SetTitle sets the header title. A blank title restores the default.
func (s *Store) SetTitle(title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = model.DefaultTitle
	}
	s.mutate(func(st *State) bool { st.Title = title; return true })
	s.save()
}

// UpdateConfig merges patch into the configuration and clears the
// conversation. It returns the new configuration.
func (s *Store) UpdateConfig(patch model.ConfigPatch) model.ChatConfig {
	var cfg model.ChatConfig
	s.mutate(func(st *State) bool {
		st.Config = st.Config.Merge(patch)
		st.Messages = []model.Message{}
		cfg = st.Config
		return true
	})
	s.save()
	return cfg
}

// ClearMessages empties the conversation.
func (s *Store) ClearMessages() {
	s.mutate(func(st *State) bool { st.Messages = []model.Message{}; return true })
}

// Reset returns to the initial state, including the initial configuration,
// mode and title.
func (s *Store) Reset() {
	s.mutate(func(st *State) bool {
		version := st.Version
		*st = initialState(s.base)
		st.Version = version
		return true
	})
	s.save()
}

// mutate applies fn under the write lock and, when fn reports a change,
// bumps the version and notifies subscribers after the lock is released.
func (s *Store) mutate(fn func(*State) bool) {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	s.state.Version++
	snap := s.state.clone()
	s.mu.Unlock()

	s.notify(snap)
}

// =============================================================================
// OBSERVERS
// =============================================================================

// Subscribe registers fn to receive a snapshot after every mutation and
// returns a function that removes it. fn runs on the mutating goroutine
// and must not block.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

func (s *Store) notify(snap State) {
	s.listenersMu.RLock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(snap.clone())
	}
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func (s *Store) load() {
	if s.kv == nil {
		return
	}
	data, err := s.kv.Get(PersistKey)
	if errors.Is(err, prefs.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Warn("store: failed to load persisted state", "error", err)
		return
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn("store: ignoring corrupt persisted state", "error", err)
		return
	}
	if err := p.Config.Validate(); err == nil {
		s.state.Config = p.Config
	} else {
		s.logger.Warn("store: ignoring invalid persisted config", "error", err)
	}
	if p.Mode.Valid() {
		s.state.Mode = p.Mode
	}
	if p.Title != "" {
		s.state.Title = p.Title
	}
}

// save writes the durable subset. Failures are logged, never returned.
func (s *Store) save() {
	if s.kv == nil {
		return
	}
	s.mu.RLock()
	p := persisted{Config: s.state.Config, Mode: s.state.Mode, Title: s.state.Title}
	s.mu.RUnlock()

	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Warn("store: failed to encode state", "error", err)
		return
	}
	if err := s.kv.Set(PersistKey, data); err != nil {
		s.logger.Warn("store: failed to persist state", "error", err)
	}
}
