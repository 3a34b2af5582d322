// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prefs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("prefs: key not found")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("prefs: store closed")
)

// Store is a small durable key-value store. Implementations are safe for
// concurrent use.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
	BackendMemory = "memory"
)

// Open opens a store from a "backend:path" spec such as
// "sqlite:/home/u/.adkchat/prefs.db" or "pebble:/tmp/prefs". "memory"
// needs no path.
func Open(spec string) (Store, error) {
	backend, path, _ := strings.Cut(strings.TrimSpace(spec), ":")
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		if path == "" {
			return nil, fmt.Errorf("prefs: %s backend needs a path", backend)
		}
		return OpenSQLite(path)
	case BackendPebble:
		if path == "" {
			return nil, fmt.Errorf("prefs: %s backend needs a path", backend)
		}
		return OpenPebble(path)
	default:
		return nil, fmt.Errorf("prefs: unknown backend %q", backend)
	}
}

func validKey(key string) error {
	if key == "" {
		return errors.New("prefs: empty key")
	}
	return nil
}
