// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the conversation state shared by every view of the
// chat: the message log, the busy and connection flags, the last error and
// the active configuration.
//
// All mutations are atomic with respect to readers. After each mutation
// every subscriber receives a full snapshot; snapshots carry a Version so a
// subscriber can ignore one that arrives after a newer one.
//
// Configuration, title and display mode persist through a prefs.Store when
// one is attached. Messages and flags never persist.
//
// # Key Types
//
//   - Store: The mutable state container
//   - State: An immutable snapshot
//
// # Usage
//
//	st := store.New(store.WithPersistence(kv), store.WithLogger(logger))
//	unsubscribe := st.Subscribe(func(s store.State) {
//	    program.Send(stateMsg(s))
//	})
//	defer unsubscribe()
package store
