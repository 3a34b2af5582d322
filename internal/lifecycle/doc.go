// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lifecycle ties the chat component's asynchronous work to its
// mounted lifetime.
//
// A Scope is created on mount and closed on unmount. Work started with
// Scope.Go is cancelled on close, and callbacks wrapped in Scope.Guard are
// dropped once the scope is closed, so a reply that arrives after teardown
// never touches state.
//
// # Key Types
//
//   - Component: Mount, props-change and unmount hooks
//   - Props: The externally supplied attributes
//   - Scope: Cancellation token and goroutine group
//   - ChatComponent: Component over the store, orchestrator and client
//
// # Usage
//
//	comp := lifecycle.NewChatComponent(st, client, lifecycle.WithLogger(logger))
//	if err := comp.OnMount(ctx, props); err != nil {
//	    return err
//	}
//	defer comp.OnUnmount()
package lifecycle
