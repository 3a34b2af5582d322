// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator drives one chat exchange end to end: it appends the
// user message and an assistant placeholder to the store, runs the request
// in the configured response mode, folds the reply into the placeholder and
// always leaves the store idle afterwards.
//
// # Key Types
//
//   - Orchestrator: Send, ResolveSession and ListApps over a Transport
//   - Transport: The subset of *adk.Client the orchestrator needs
//   - Gate: Decides whether late callbacks may still touch the store
//
// # Usage
//
//	o := orchestrator.New(st, client, orchestrator.WithGate(scope))
//	if err := o.ResolveSession(ctx); err != nil {
//	    // connection indicator already shows Disconnected
//	}
//	_ = o.Send(ctx, "hello")
package orchestrator
