// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/adk"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/store"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/telemetry"
)

// Literal texts written into the assistant message.
const (
	NoResponseText = "No response received"
	ApologyText    = "Sorry, I encountered an error processing your message."
)

// ErrBusy is returned by Send while a previous send is still running.
var ErrBusy = errors.New("a message is already being sent")

// Transport is the backend surface used by the orchestrator.
// *adk.Client satisfies it.
type Transport interface {
	GetSession(ctx context.Context, cfg model.ChatConfig) (*model.Session, error)
	CreateSession(ctx context.Context, cfg model.ChatConfig, state map[string]any) (*model.Session, error)
	SendMessage(ctx context.Context, cfg model.ChatConfig, text string) ([]adk.Event, error)
	SendMessageStreaming(ctx context.Context, cfg model.ChatConfig, text string, onEvent func(adk.Event), onError func(error)) error
	ListApps(ctx context.Context, cfg model.ChatConfig) ([]string, error)
}

// Gate runs fn only while the owning component is alive and reports
// whether it ran. lifecycle.Scope implements it.
type Gate interface {
	Guard(fn func()) bool
}

type openGate struct{}

func (openGate) Guard(fn func()) bool { fn(); return true }

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator coordinates the store and the transport.
type Orchestrator struct {
	store     *store.Store
	transport Transport
	gate      Gate
	limiter   *adk.SendLimiter
	metrics   *telemetry.Metrics
	logger    *slog.Logger

	// sendMu makes the busy check and the first store writes one step.
	sendMu sync.Mutex

	sessionMu  sync.Mutex
	sessionKey string
	session    *model.Session
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGate sets the liveness gate for late callbacks.
func WithGate(g Gate) Option {
	return func(o *Orchestrator) {
		if g != nil {
			o.gate = g
		}
	}
}

// WithLimiter throttles sends.
func WithLimiter(l *adk.SendLimiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

// WithMetrics records send outcomes.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an orchestrator over st and t.
func New(st *store.Store, t Transport, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     st,
		transport: t,
		gate:      openGate{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Store returns the store the orchestrator writes to.
func (o *Orchestrator) Store() *store.Store {
	return o.store
}

// =============================================================================
// SEND
// =============================================================================

// Send delivers text to the agent and records the exchange in the store.
//
// Blank text is ignored. The returned error is the transport failure, if
// any; by then it has already been written to the store as the assistant
// message and the error banner.
//
// Once the gate is closed, stream deltas and the error banner are dropped,
// but the final content patch and the loading flags are still written so
// the placeholder never stays streaming and the store is not left busy for
// the next mount.
func (o *Orchestrator) Send(ctx context.Context, text string) error {
	clean := adk.SanitizeInput(text)
	if clean == "" {
		return nil
	}

	o.sendMu.Lock()
	snap := o.store.Snapshot()
	if snap.Busy() {
		o.sendMu.Unlock()
		return ErrBusy
	}
	if err := o.limiter.Allow(); err != nil {
		o.sendMu.Unlock()
		o.store.SetError(err.Error())
		return err
	}

	cfg := snap.Config
	streamMode := cfg.ResponseMode != model.ResponseModeStandard
	mode := string(model.ResponseModeStandard)
	if streamMode {
		mode = string(model.ResponseModeStream)
	}

	o.store.ClearError()
	o.store.SetLoading(true)
	o.store.AppendMessage(model.RoleUser, clean, false)
	placeholder := o.store.AppendMessage(model.RoleAssistant, "", true)
	if streamMode {
		o.store.SetStreaming(true)
	}
	o.sendMu.Unlock()

	start := time.Now()
	defer func() {
		o.store.SetLoading(false)
		if streamMode {
			o.store.SetStreaming(false)
		}
	}()

	var (
		reply string
		err   error
	)
	if streamMode {
		reply, err = o.runStream(ctx, cfg, clean, placeholder.ID)
	} else {
		reply, err = o.runStandard(ctx, cfg, clean)
	}

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		o.store.UpdateMessage(placeholder.ID, model.MessagePatch{
			Content:     model.String(ApologyText),
			IsStreaming: model.Bool(false),
		})
		o.gate.Guard(func() { o.store.SetError(err.Error()) })
	case reply == "":
		outcome = "empty"
		reply = NoResponseText
		fallthrough
	default:
		o.store.UpdateMessage(placeholder.ID, model.MessagePatch{
			Content:     model.String(reply),
			IsStreaming: model.Bool(false),
		})
	}

	o.metrics.ObserveSend(mode, outcome)
	logger := o.logger.With("mode", mode, "chars", len(clean), "duration", time.Since(start), "outcome", outcome)
	if err != nil {
		logger.Warn("chat: send failed", "error", err)
	} else {
		logger.Info("chat: send finished", "reply_chars", len(reply))
	}
	return err
}

// runStream folds every delta into the placeholder. The content written is
// always the full accumulated text.
func (o *Orchestrator) runStream(ctx context.Context, cfg model.ChatConfig, text, placeholderID string) (string, error) {
	var acc string
	err := o.transport.SendMessageStreaming(ctx, cfg, text,
		func(ev adk.Event) {
			chunk := ev.Text()
			if chunk == "" {
				return
			}
			acc += chunk
			content := acc
			o.gate.Guard(func() {
				o.store.UpdateMessage(placeholderID, model.MessagePatch{
					Content:     model.String(content),
					IsStreaming: model.Bool(true),
				})
			})
		},
		func(err error) {
			o.logger.Debug("chat: skipped malformed stream event", "error", err)
		},
	)
	return acc, err
}

func (o *Orchestrator) runStandard(ctx context.Context, cfg model.ChatConfig, text string) (string, error) {
	events, err := o.transport.SendMessage(ctx, cfg, text)
	if err != nil {
		return "", err
	}
	return adk.ExtractText(events), nil
}

// =============================================================================
// SESSIONS
// =============================================================================

// ResolveSession makes sure the configured session exists: it is fetched,
// or created when fetching fails. The result is cached until the app, user
// or session identifier changes.
//
// On failure the store shows Disconnected and the connection error, and a
// *adk.SessionError is returned.
func (o *Orchestrator) ResolveSession(ctx context.Context) error {
	cfg := o.store.Config()
	key := cfg.SessionKey()

	o.sessionMu.Lock()
	if o.session != nil && o.sessionKey == key {
		o.sessionMu.Unlock()
		o.gate.Guard(func() { o.store.SetConnected(true) })
		return nil
	}
	o.sessionMu.Unlock()

	o.gate.Guard(func() { o.store.SetConnecting(true) })
	defer o.gate.Guard(func() { o.store.SetConnecting(false) })

	sess, getErr := o.transport.GetSession(ctx, cfg)
	var createErr error
	if getErr != nil {
		o.logger.Debug("chat: session not found, creating", "error", getErr)
		sess, createErr = o.transport.CreateSession(ctx, cfg, nil)
	}

	if createErr != nil {
		serr := &adk.SessionError{GetErr: getErr, CreateErr: createErr}
		o.logger.Warn("chat: session initialization failed", "app", cfg.AppName, "detail", serr.Detail())
		o.gate.Guard(func() {
			o.store.SetError(adk.SessionErrorMessage)
			o.store.SetConnected(false)
		})
		return serr
	}

	o.sessionMu.Lock()
	o.session, o.sessionKey = sess, key
	o.sessionMu.Unlock()

	o.gate.Guard(func() { o.store.SetConnected(true) })
	o.logger.Info("chat: session ready", "app", cfg.AppName, "session", cfg.SessionID, "events", sess.EventCount())
	return nil
}

// Session returns the cached session for the current configuration.
func (o *Orchestrator) Session() (*model.Session, bool) {
	key := o.store.Config().SessionKey()
	o.sessionMu.Lock()
	defer o.sessionMu.Unlock()
	if o.session == nil || o.sessionKey != key {
		return nil, false
	}
	return o.session, true
}

// InvalidateSession drops the cached session.
func (o *Orchestrator) InvalidateSession() {
	o.sessionMu.Lock()
	o.session, o.sessionKey = nil, ""
	o.sessionMu.Unlock()
}

// ListApps returns the agent applications known to the configured backend.
func (o *Orchestrator) ListApps(ctx context.Context) ([]string, error) {
	return o.transport.ListApps(ctx, o.store.Config())
}
