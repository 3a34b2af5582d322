// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prefs is the durable key-value store behind persisted chat
// preferences (configuration and display mode).
//
// Three backends share one interface: SQLite (the default, a single file),
// Pebble (an LSM directory) and an in-memory map used by tests and by
// --storage=memory.
//
// # Key Types
//
//   - Store: Get/Set/Delete/Keys over opaque byte values
//   - SQLiteStore, PebbleStore, MemoryStore: The backends
//
// # Usage
//
//	store, err := prefs.Open("sqlite:" + filepath.Join(dir, "prefs.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
package prefs
