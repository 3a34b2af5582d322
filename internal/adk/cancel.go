// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package adk

import (
	"context"
	"sync"
)

// =============================================================================
// IN-FLIGHT REQUEST TRACKING
// =============================================================================

// inflightSet tracks a cancel function per outstanding request so they can
// be aborted together. It must be used through a pointer.
type inflightSet struct {
	mu      sync.Mutex
	next    uint64
	cancels map[uint64]context.CancelCauseFunc
}

func newInflightSet() *inflightSet {
	return &inflightSet{cancels: make(map[uint64]context.CancelCauseFunc)}
}

// track derives a cancellable context from ctx and registers it. The
// returned release func must be called once the request finishes.
func (s *inflightSet) track(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)

	s.mu.Lock()
	id := s.next
	s.next++
	s.cancels[id] = cancel
	s.mu.Unlock()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.cancels, id)
			s.mu.Unlock()
			cancel(nil)
		})
	}
}

// cancelAll aborts every tracked request and returns how many there were.
func (s *inflightSet) cancelAll() int {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = make(map[uint64]context.CancelCauseFunc)
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel(ErrCancelled)
	}
	return len(cancels)
}

// len returns the number of tracked requests.
func (s *inflightSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancels)
}
