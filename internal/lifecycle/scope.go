// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lifecycle

import (
	"context"
	"errors"
	"sync"
)

// ErrScopeClosed is returned by Go after Close.
var ErrScopeClosed = errors.New("lifecycle: scope closed")

// Scope is a cancellation token for one mounted lifetime.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	// mu is held for reading while a guarded callback runs so that Close
	// waits for it.
	mu     sync.RWMutex
	closed bool

	wg sync.WaitGroup
}

// NewScope creates a live scope derived from parent.
func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Context is cancelled when the scope closes.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Alive reports whether the scope is still open.
func (s *Scope) Alive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Go runs fn in a goroutine with the scope's context. Close waits for it.
func (s *Scope) Go(fn func(ctx context.Context)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrScopeClosed
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
	return nil
}

// Guard runs fn only while the scope is open and reports whether it ran.
func (s *Scope) Guard(fn func()) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	fn()
	return true
}

// Close cancels the scope, then waits for goroutines started with Go.
// Guarded callbacks that are already running finish first; later ones are
// dropped. Close is idempotent and must not be called from inside Go or
// Guard.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
