// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/orchestrator"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/store"
)

// ErrNotMounted is returned by operations that need a mounted component.
var ErrNotMounted = errors.New("lifecycle: component not mounted")

// Component is anything with a mounted lifetime driven by props.
type Component interface {
	OnMount(ctx context.Context, props Props) error
	OnPropsChanged(ctx context.Context, prev, next Props) error
	OnUnmount()
}

// Backend is the transport a ChatComponent drives. *adk.Client
// satisfies it.
type Backend interface {
	orchestrator.Transport
	CancelAll() int
}

// =============================================================================
// CHAT COMPONENT
// =============================================================================

// ChatComponent binds the store and orchestrator to a mounted lifetime.
type ChatComponent struct {
	store   *store.Store
	backend Backend
	opts    []orchestrator.Option
	logger  *slog.Logger

	mu    sync.Mutex
	scope *Scope
	orch  *orchestrator.Orchestrator
	props Props
}

var _ Component = (*ChatComponent)(nil)

// Option configures a ChatComponent.
type Option func(*ChatComponent)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *ChatComponent) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOrchestratorOptions passes options to the orchestrator created on
// each mount.
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(c *ChatComponent) { c.opts = append(c.opts, opts...) }
}

// NewChatComponent creates an unmounted component.
func NewChatComponent(st *store.Store, backend Backend, opts ...Option) *ChatComponent {
	c := &ChatComponent{
		store:   st,
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnMount applies props and starts resolving the session in the
// background. Mounting an already mounted component is a no-op.
func (c *ChatComponent) OnMount(ctx context.Context, props Props) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scope != nil {
		return nil
	}

	scope := NewScope(context.WithoutCancel(ctx))
	opts := append([]orchestrator.Option{
		orchestrator.WithGate(scope),
		orchestrator.WithLogger(c.logger),
	}, c.opts...)

	c.scope = scope
	c.orch = orchestrator.New(c.store, c.backend, opts...)
	c.props = props

	c.applyProps(Props{}, props)
	c.logger.Debug("lifecycle: mounted", "app", c.store.Config().AppName)
	return c.resolveLocked()
}

// OnPropsChanged applies the difference between prev and next. An identity
// change clears the conversation and resolves the new session.
func (c *ChatComponent) OnPropsChanged(ctx context.Context, prev, next Props) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scope == nil {
		return ErrNotMounted
	}
	c.props = next
	if c.applyProps(prev, next) {
		return c.resolveLocked()
	}
	return nil
}

// OnUnmount aborts in-flight requests and drops every callback that
// arrives afterwards.
func (c *ChatComponent) OnUnmount() {
	c.mu.Lock()
	scope := c.scope
	c.scope, c.orch = nil, nil
	c.mu.Unlock()
	if scope == nil {
		return
	}

	n := c.backend.CancelAll()
	scope.Close()
	c.logger.Debug("lifecycle: unmounted", "cancelled", n)
}

// Send sends text in the background. Errors are reported through the
// store.
func (c *ChatComponent) Send(text string) error {
	c.mu.Lock()
	scope, orch := c.scope, c.orch
	c.mu.Unlock()
	if scope == nil {
		return ErrNotMounted
	}
	return scope.Go(func(ctx context.Context) {
		_ = orch.Send(ctx, text)
	})
}

// Reconnect drops the cached session and resolves it again.
func (c *ChatComponent) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scope == nil {
		return ErrNotMounted
	}
	c.orch.InvalidateSession()
	return c.resolveLocked()
}

// Orchestrator returns the orchestrator of the current mount, or nil.
func (c *ChatComponent) Orchestrator() *orchestrator.Orchestrator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orch
}

// Props returns the props last applied.
func (c *ChatComponent) Props() Props {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.props
}

// Store returns the component's store.
func (c *ChatComponent) Store() *store.Store {
	return c.store
}

// applyProps writes prop changes to the store and reports whether the
// session identity changed.
func (c *ChatComponent) applyProps(prev, next Props) bool {
	if next.Mode != "" && next.Mode != prev.Mode {
		c.store.SetMode(next.Mode)
	}
	if next.Title != "" && next.Title != prev.Title {
		c.store.SetTitle(next.Title)
	}

	changed, identity := next.configChanges(c.store.Config())
	if !changed {
		return false
	}
	c.store.UpdateConfig(next.ConfigPatch())
	if identity {
		c.store.SetConnected(false)
	}
	return identity
}

func (c *ChatComponent) resolveLocked() error {
	orch := c.orch
	return c.scope.Go(func(ctx context.Context) {
		_ = orch.ResolveSession(ctx)
	})
}
